// Package agentrun invokes section-author agents against a resolved AI
// provider. It owns the transient-retry loop: rate limits and 5xx-class
// failures are retried with backoff inside one Run call, while permanent
// failures surface immediately. A QC rejection is not a runner failure;
// it arrives back here only as feedback on the next Run.
package agentrun

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/caldermed/psurd/internal/config"
	"github.com/caldermed/psurd/internal/golden"
	"github.com/caldermed/psurd/internal/provider"
	"github.com/caldermed/psurd/internal/template"
)

// ProviderSet resolves vendor names to live providers. Satisfied by
// provider.Resolver.
type ProviderSet interface {
	Provider(vendor string) (provider.Provider, bool)
}

// RetryPolicy bounds the transient-retry loop inside one Run call.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries twice after the first failure with short
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// RunInput is everything one section invocation needs: the section
// definition, the authoring agent, the pre-resolved provider, a
// consistent master-context snapshot, and any QC feedback from earlier
// attempts.
type RunInput struct {
	Section    template.SectionSpec
	Agent      config.AgentConfig
	Resolution provider.Resolution
	Snapshot   golden.Snapshot
	Feedback   []string
}

// Draft is a completed section invocation. Facts carries values the
// section computed that belong in the master context; the workflow merges
// them as calculated, so frozen keys are immune.
type Draft struct {
	SectionID string         `json:"section_id"`
	Agent     string         `json:"agent"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Content   string         `json:"content"`
	Words     int            `json:"words"`
	Facts     map[string]any `json:"facts,omitempty"`
}

// Runner executes agent calls through a ProviderSet.
type Runner struct {
	providers ProviderSet
	policy    RetryPolicy
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRunner creates a runner with the given retry policy.
func NewRunner(providers ProviderSet, policy RetryPolicy) *Runner {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	return &Runner{providers: providers, policy: policy, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run produces a draft for the section. Transient provider failures are
// retried up to the policy bound; a permanent failure or retry exhaustion
// is returned to the caller, who counts it as one failed section attempt.
func (r *Runner) Run(ctx context.Context, in RunInput) (Draft, error) {
	p, ok := r.providers.Provider(in.Resolution.Provider)
	if !ok {
		return Draft{}, fmt.Errorf("agentrun: provider %q not configured", in.Resolution.Provider)
	}

	req := provider.Request{
		Model:       in.Resolution.Model,
		System:      systemPrompt(in.Agent, in.Snapshot),
		Prompt:      sectionPrompt(in.Section, in.Snapshot, in.Feedback),
		MaxTokens:   in.Agent.MaxTokens,
		Temperature: in.Agent.Temperature,
	}

	raw, err := r.generate(ctx, p, req)
	if err != nil {
		return Draft{}, err
	}
	content, facts := extractFacts(raw)
	return Draft{
		SectionID: in.Section.ID,
		Agent:     in.Agent.Name,
		Provider:  in.Resolution.Provider,
		Model:     in.Resolution.Model,
		Content:   content,
		Words:     len(strings.Fields(content)),
		Facts:     facts,
	}, nil
}

// extractFacts pulls "Fact: key = value" lines out of the agent's output.
// These carry figures the section computed for the master context; the
// lines are stripped from the report body. Values parse as int, then
// float, then fall back to string.
func extractFacts(raw string) (string, map[string]any) {
	var kept []string
	var facts map[string]any
	for _, line := range strings.Split(raw, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Fact:")
		if !ok {
			kept = append(kept, line)
			continue
		}
		key, value, ok := strings.Cut(rest, "=")
		key = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), " ", "_"))
		if !ok || key == "" {
			kept = append(kept, line)
			continue
		}
		if facts == nil {
			facts = make(map[string]any)
		}
		facts[key] = parseFactValue(strings.TrimSpace(value))
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), facts
}

func parseFactValue(s string) any {
	if n, err := strconv.Atoi(strings.ReplaceAll(s, ",", "")); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Ask answers an ad-hoc operator question through the agent. No section
// state is involved; the prompt carries only the master context.
func (r *Runner) Ask(ctx context.Context, agent config.AgentConfig, res provider.Resolution, snap golden.Snapshot, question string) (string, error) {
	p, ok := r.providers.Provider(res.Provider)
	if !ok {
		return "", fmt.Errorf("agentrun: provider %q not configured", res.Provider)
	}
	req := provider.Request{
		Model:       res.Model,
		System:      systemPrompt(agent, snap),
		Prompt:      fmt.Sprintf("An operator asks you directly:\n\n%s\n\nAnswer concisely using only the master context above.", question),
		MaxTokens:   agent.MaxTokens,
		Temperature: agent.Temperature,
	}
	return r.generate(ctx, p, req)
}

func (r *Runner) generate(ctx context.Context, p provider.Provider, req provider.Request) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.policy.InitialInterval
	bo.MaxInterval = r.policy.MaxInterval

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		content, err := p.Generate(ctx, req)
		if err == nil {
			return content, nil
		}
		if !provider.IsTransient(err) {
			return "", err
		}
		lastErr = err
		if attempt == r.policy.MaxAttempts {
			break
		}
		if serr := r.sleep(ctx, bo.NextBackOff()); serr != nil {
			return "", serr
		}
	}
	return "", fmt.Errorf("agentrun: %d attempts exhausted: %w", r.policy.MaxAttempts, lastErr)
}

func systemPrompt(agent config.AgentConfig, snap golden.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s for a medical-device post-market surveillance report.\n", agent.Name, agent.Role)
	if agent.Persona != "" {
		b.WriteString(agent.Persona)
		b.WriteString("\n")
	}
	b.WriteString("\nMaster context (authoritative, do not recalculate):\n")
	b.WriteString(snap.Describe())
	b.WriteString("\n")
	if policy := snap.String(golden.KeyInferencePolicy); policy != "" {
		fmt.Fprintf(&b, "Inference policy: %s. If a data source is marked unavailable, state that explicitly instead of inferring.\n", policy)
	}
	return b.String()
}

func sectionPrompt(sec template.SectionSpec, snap golden.Snapshot, feedback []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write section %d, %q, of the report.\n\nPurpose: %s\n", sec.Number, sec.Name, sec.Purpose)

	if len(sec.RequiredContent) > 0 {
		b.WriteString("\nRequired content:\n")
		for _, rc := range sec.RequiredContent {
			fmt.Fprintf(&b, "- %s\n", rc)
		}
	}

	denom := snap.Int(golden.KeyExposureDenominator)
	fmt.Fprintf(&b, "\nUse exactly %s units as the exposure denominator wherever a rate or denominator appears.\n",
		golden.FormatUnits(denom))

	if len(sec.DependsOn) > 0 {
		fmt.Fprintf(&b, "Cite upstream sections by name (e.g. \"Section %s\") when you rely on their findings.\n",
			sec.DependsOn[0])
	}
	if sec.WordLimit > 0 {
		fmt.Fprintf(&b, "Keep the section under %d words.\n", sec.WordLimit)
	}
	b.WriteString("Report every figure you compute on its own line as `Fact: key = value` (e.g. `Fact: complaint_rate_per_100k = 326.9`); these lines feed the shared master context and are removed from the report body.\n")

	if len(feedback) > 0 {
		b.WriteString("\nThis is a revision. Address every point of reviewer feedback:\n")
		for i, f := range feedback {
			fmt.Fprintf(&b, "%d. %s\n", i+1, f)
		}
	}
	return b.String()
}
