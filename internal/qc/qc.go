// Package qc reviews section drafts against the template's required
// content and the master context's golden figures. Verdicts are
// structured so rejection feedback can be replayed verbatim into the next
// revision prompt.
package qc

import (
	"context"
	"fmt"
	"strings"

	"github.com/caldermed/psurd/internal/agentrun"
	"github.com/caldermed/psurd/internal/golden"
	"github.com/caldermed/psurd/internal/template"
)

// Finding is one check result. Blocking findings reject the draft;
// advisory findings ride along in the feedback without rejecting.
type Finding struct {
	Check    string `json:"check"`
	Detail   string `json:"detail"`
	Blocking bool   `json:"blocking"`
}

// Verdict is the outcome of one review.
type Verdict struct {
	Approved bool      `json:"approved"`
	Findings []Finding `json:"findings,omitempty"`
}

// FeedbackText flattens the findings into one revision-prompt string,
// each line naming the failing check.
func (v Verdict) FeedbackText() string {
	var lines []string
	for _, f := range v.Findings {
		lines = append(lines, fmt.Sprintf("[%s] %s", f.Check, f.Detail))
	}
	return strings.Join(lines, "; ")
}

// CheckInput is what every checker sees: the section definition, the
// draft under review, and the same master-context snapshot the author
// saw.
type CheckInput struct {
	Section  template.SectionSpec
	Draft    agentrun.Draft
	Snapshot golden.Snapshot
}

// Checker runs one class of structural check. External compliance
// collaborators implement this too; the call takes a context because a
// checker may do long-latency I/O.
type Checker interface {
	Check(ctx context.Context, in CheckInput) ([]Finding, error)
}

// Reviewer runs all configured checkers and folds their findings into a
// verdict.
type Reviewer struct {
	checkers []Checker
}

// NewReviewer builds a reviewer; with no checkers given it uses the
// structural checks.
func NewReviewer(checkers ...Checker) *Reviewer {
	if len(checkers) == 0 {
		checkers = []Checker{&StructuralChecker{}}
	}
	return &Reviewer{checkers: checkers}
}

// Review returns Approved when no checker produced a blocking finding.
// A checker error is an infrastructure failure, not a rejection, and is
// surfaced to the caller.
func (r *Reviewer) Review(ctx context.Context, in CheckInput) (Verdict, error) {
	var findings []Finding
	for _, c := range r.checkers {
		fs, err := c.Check(ctx, in)
		if err != nil {
			return Verdict{}, fmt.Errorf("qc: check section %s: %w", in.Section.ID, err)
		}
		findings = append(findings, fs...)
	}

	approved := true
	for _, f := range findings {
		if f.Blocking {
			approved = false
			break
		}
	}
	return Verdict{Approved: approved, Findings: findings}, nil
}

// StructuralChecker verifies a draft mechanically: required content
// present, the golden exposure denominator cited, upstream sections
// referenced, and the word limit respected.
type StructuralChecker struct{}

var _ Checker = (*StructuralChecker)(nil)

// wordLimitSlack is how far past the template limit a draft may run
// before it even draws an advisory.
const wordLimitSlack = 1.2

func (c *StructuralChecker) Check(_ context.Context, in CheckInput) ([]Finding, error) {
	var findings []Finding
	content := strings.ToLower(in.Draft.Content)

	for _, required := range in.Section.RequiredContent {
		if !containsTopic(content, required) {
			findings = append(findings, Finding{
				Check:    "required_content",
				Detail:   fmt.Sprintf("required content %q not addressed", required),
				Blocking: true,
			})
		}
	}

	if denom := in.Snapshot.Int(golden.KeyExposureDenominator); denom > 0 && sectionUsesDenominator(in.Section) {
		formatted := golden.FormatUnits(denom)
		bare := strings.ReplaceAll(formatted, ",", "")
		if !strings.Contains(in.Draft.Content, formatted) && !strings.Contains(in.Draft.Content, bare) {
			findings = append(findings, Finding{
				Check:    "golden_denominator",
				Detail:   fmt.Sprintf("exposure denominator %s units not cited; all rates must use the shared denominator", formatted),
				Blocking: true,
			})
		}
	}

	if len(in.Section.DependsOn) > 0 {
		cited := false
		for _, dep := range in.Section.DependsOn {
			if strings.Contains(in.Draft.Content, "Section "+dep) {
				cited = true
				break
			}
		}
		if !cited {
			findings = append(findings, Finding{
				Check:    "upstream_citation",
				Detail:   fmt.Sprintf("no upstream section cited; expected a reference to at least one of %s", strings.Join(in.Section.DependsOn, ", ")),
				Blocking: true,
			})
		}
	}

	if in.Section.WordLimit > 0 {
		limit := int(float64(in.Section.WordLimit) * wordLimitSlack)
		if in.Draft.Words > limit {
			findings = append(findings, Finding{
				Check:    "word_limit",
				Detail:   fmt.Sprintf("draft runs %d words against a %d-word limit", in.Draft.Words, in.Section.WordLimit),
				Blocking: false,
			})
		}
	}
	return findings, nil
}

// sectionUsesDenominator reports whether the section's required content
// mentions rates or exposure, the cases where the shared denominator must
// appear.
func sectionUsesDenominator(sec template.SectionSpec) bool {
	for _, rc := range sec.RequiredContent {
		lc := strings.ToLower(rc)
		if strings.Contains(lc, "rate") || strings.Contains(lc, "exposure") || strings.Contains(lc, "denominator") || strings.Contains(lc, "units") {
			return true
		}
	}
	return false
}

// containsTopic checks that the draft addresses a required-content item.
// Exact containment first; otherwise at least half of the item's
// significant words must appear.
func containsTopic(content, topic string) bool {
	lt := strings.ToLower(topic)
	if strings.Contains(content, lt) {
		return true
	}
	words := strings.Fields(lt)
	var significant, present int
	for _, w := range words {
		if len(w) < 4 {
			continue
		}
		significant++
		if strings.Contains(content, w) {
			present++
		}
	}
	if significant == 0 {
		return false
	}
	return present*2 >= significant
}
