package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caldermed/psurd/internal/agentrun"
	"github.com/caldermed/psurd/internal/config"
	"github.com/caldermed/psurd/internal/events"
	"github.com/caldermed/psurd/internal/golden"
	"github.com/caldermed/psurd/internal/ingest"
	"github.com/caldermed/psurd/internal/provider"
	"github.com/caldermed/psurd/internal/qc"
	"github.com/caldermed/psurd/internal/taskgraph"
	"github.com/caldermed/psurd/internal/template"
)

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	ErrSessionNotFound  = errors.New("workflow: session not found")
	ErrInvalidState     = errors.New("workflow: operation not valid in current state")
	ErrBlockingIssues   = errors.New("workflow: blocking data-sufficiency issues present")
	ErrUnknownAgent     = errors.New("workflow: unknown agent")
)

// Runner is the agent-invocation surface the coordinator needs.
// Satisfied by agentrun.Runner.
type Runner interface {
	Run(ctx context.Context, in agentrun.RunInput) (agentrun.Draft, error)
	Ask(ctx context.Context, agent config.AgentConfig, res provider.Resolution, snap golden.Snapshot, question string) (string, error)
}

// Reviewer reviews drafts. Satisfied by qc.Reviewer.
type Reviewer interface {
	Review(ctx context.Context, in qc.CheckInput) (qc.Verdict, error)
}

// Config wires the coordinator's collaborators.
type Config struct {
	Template     *template.Template
	Roster       map[string]config.AgentConfig
	Resolver     *provider.Resolver
	Runner       Runner
	Reviewer     Reviewer
	Broadcaster  *events.Broadcaster
	MaxRevisions int              // generation attempts per section; default 3
	CallTimeout  time.Duration    // outer deadline per agent or QC call
}

// Coordinator is the workflow state machine for every session in the
// process. Sessions are independent; they share only the read-only
// resolver configuration and the broadcaster.
type Coordinator struct {
	cfg   Config
	graph *taskgraph.Graph

	store *sessionStore

	mu       sync.Mutex
	contexts map[string]*golden.Store       // master context per session
	facts    map[string]ingest.Facts        // raw intake per session
	paused   map[string]bool                // pause requested, honored at boundary
	cancels  map[string]context.CancelFunc  // driver loop cancel per session
	wake     map[string]chan struct{}       // resume signal per session
}

// NewCoordinator validates the template graph and returns a coordinator.
// A cyclic template is a configuration error and fails here, at startup.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Template == nil {
		cfg.Template = template.Builtin()
	}
	if cfg.Roster == nil {
		cfg.Roster = config.Roster()
	}
	if cfg.MaxRevisions <= 0 {
		cfg.MaxRevisions = config.DefaultMaxRevisions
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Minute
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = events.NewBroadcaster(0)
	}

	g, err := taskgraph.New(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("workflow: load template %q: %w", cfg.Template.ID, err)
	}
	return &Coordinator{
		cfg:      cfg,
		graph:    g,
		store:    newSessionStore(),
		contexts: make(map[string]*golden.Store),
		facts:    make(map[string]ingest.Facts),
		paused:   make(map[string]bool),
		cancels:  make(map[string]context.CancelFunc),
		wake:     make(map[string]chan struct{}),
	}, nil
}

// CreateSession initializes a session with an empty master context.
func (c *Coordinator) CreateSession(meta Metadata) (*Session, error) {
	now := time.Now()
	sess := Session{
		ID:        uuid.NewString(),
		Metadata:  meta,
		Status:    StatusCreated,
		Tasks:     make(map[string]*SectionTask),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.Create(sess); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.contexts[sess.ID] = golden.NewStore()
	c.mu.Unlock()

	return c.store.Get(sess.ID)
}

// Ingest supplies intake facts, seeds the master context, runs
// sufficiency checks, and moves the session to validating. Repeatable
// while still in created/validating so an operator can fix inputs.
func (c *Coordinator) Ingest(ctx context.Context, sessionID string, facts ingest.Facts) ([]ingest.Issue, error) {
	sess, err := c.get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != StatusCreated && sess.Status != StatusValidating {
		return nil, fmt.Errorf("%w: ingest in %s", ErrInvalidState, sess.Status)
	}

	issues := ingest.Check(ctx, facts)

	c.mu.Lock()
	// Re-seed into a fresh store so corrected intake fully replaces the
	// earlier values, frozen keys included.
	store := golden.NewStore()
	ingest.Apply(store, facts)
	c.contexts[sessionID] = store
	c.facts[sessionID] = facts
	c.mu.Unlock()

	err = c.store.Update(sessionID, func(s *Session) {
		s.Issues = issues
		s.Status = StatusValidating
		s.UpdatedAt = time.Now()
	})
	if err != nil {
		return nil, err
	}
	c.publishStatus(sessionID, StatusValidating)
	return issues, nil
}

// Start moves validating to running: refuses on blocking issues unless
// override is set, resolves every section agent's provider up front
// (the only point where a missing credential is fatal), materializes the
// task set, and spawns the driver loop.
func (c *Coordinator) Start(sessionID string, override bool) error {
	sess, err := c.get(sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusValidating {
		return fmt.Errorf("%w: start in %s", ErrInvalidState, sess.Status)
	}
	if ingest.HasBlocking(sess.Issues) && !override {
		return ErrBlockingIssues
	}

	// Resolve all providers before any task starts so a configuration
	// hole surfaces now, not mid-run.
	resolutions := make(map[string]provider.Resolution, len(c.cfg.Template.Sections))
	for _, sec := range c.cfg.Template.Sections {
		agent, ok := c.cfg.Roster[sec.Agent]
		if !ok {
			return fmt.Errorf("%w: %q (section %s)", ErrUnknownAgent, sec.Agent, sec.ID)
		}
		res, err := c.cfg.Resolver.Resolve(agent.PreferredProvider, agent.PreferredModel)
		if err != nil {
			c.fail(sessionID, fmt.Sprintf("cannot start: %v", err))
			return err
		}
		resolutions[sec.ID] = res
	}

	now := time.Now()
	err = c.store.Update(sessionID, func(s *Session) {
		s.Status = StatusRunning
		s.Tasks = make(map[string]*SectionTask, len(c.cfg.Template.Sections))
		for _, sec := range c.cfg.Template.Sections {
			s.Tasks[sec.ID] = &SectionTask{
				ID:         sec.ID,
				Agent:      sec.Agent,
				DependsOn:  append([]string(nil), sec.DependsOn...),
				State:      taskgraph.StatusPending,
				Resolution: resolutions[sec.ID],
				UpdatedAt:  now,
			}
		}
		s.UpdatedAt = now
	})
	if err != nil {
		return err
	}
	c.publishStatus(sessionID, StatusRunning)

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancels[sessionID] = cancel
	c.wake[sessionID] = make(chan struct{}, 1)
	c.mu.Unlock()

	go c.drive(ctx, sessionID)
	return nil
}

// Pause requests a stop at the next section boundary. An in-flight agent
// call always runs to completion.
func (c *Coordinator) Pause(sessionID string) error {
	sess, err := c.get(sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusRunning {
		return fmt.Errorf("%w: pause in %s", ErrInvalidState, sess.Status)
	}
	c.mu.Lock()
	c.paused[sessionID] = true
	c.mu.Unlock()
	return nil
}

// Resume clears a pause request and wakes the driver loop.
func (c *Coordinator) Resume(sessionID string) error {
	sess, err := c.get(sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusPaused && sess.Status != StatusRunning {
		return fmt.Errorf("%w: resume in %s", ErrInvalidState, sess.Status)
	}

	c.mu.Lock()
	c.paused[sessionID] = false
	wake := c.wake[sessionID]
	c.mu.Unlock()

	if wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Ask synchronously invokes one agent in question-answering mode. It
// never touches SectionTask state; the exchange is emitted as a pair of
// message events.
func (c *Coordinator) Ask(ctx context.Context, sessionID, agentName, question string) (string, error) {
	sess, err := c.get(sessionID)
	if err != nil {
		return "", err
	}
	if sess.Status != StatusRunning && sess.Status != StatusPaused && sess.Status != StatusNeedsHuman {
		return "", fmt.Errorf("%w: ask in %s", ErrInvalidState, sess.Status)
	}
	agent, ok := c.cfg.Roster[agentName]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAgent, agentName)
	}
	res, err := c.cfg.Resolver.Resolve(agent.PreferredProvider, agent.PreferredModel)
	if err != nil {
		return "", err
	}

	c.cfg.Broadcaster.Publish(sessionID, events.Event{
		Type: events.TypeMessage, Agent: agentName,
		Payload: map[string]any{"direction": "question", "text": question},
	})

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	answer, err := c.cfg.Runner.Ask(callCtx, agent, res, c.snapshot(sessionID), question)
	if err != nil {
		return "", fmt.Errorf("workflow: ask %s: %w", agentName, err)
	}

	c.cfg.Broadcaster.Publish(sessionID, events.Event{
		Type: events.TypeMessage, Agent: agentName,
		Payload: map[string]any{"direction": "answer", "text": answer},
	})
	return answer, nil
}

// Override writes a master-context override on behalf of an operator.
func (c *Coordinator) Override(sessionID, key string, value any, actor string) error {
	if _, err := c.get(sessionID); err != nil {
		return err
	}
	c.mu.Lock()
	store := c.contexts[sessionID]
	c.mu.Unlock()
	store.SetOverride(key, value, actor)

	c.cfg.Broadcaster.Publish(sessionID, events.Event{
		Type:    events.TypeMessage,
		Payload: map[string]any{"direction": "override", "key": key, "actor": actor},
	})
	return nil
}

// Delete stops the driver loop, lets any in-flight call finish on its own
// context, marks the session terminated, and drops its event log.
func (c *Coordinator) Delete(sessionID string) error {
	if _, err := c.get(sessionID); err != nil {
		return err
	}

	c.mu.Lock()
	if cancel, ok := c.cancels[sessionID]; ok {
		cancel()
		delete(c.cancels, sessionID)
	}
	delete(c.paused, sessionID)
	delete(c.wake, sessionID)
	delete(c.contexts, sessionID)
	delete(c.facts, sessionID)
	c.mu.Unlock()

	_ = c.store.Update(sessionID, func(s *Session) {
		if !s.Status.IsTerminal() {
			s.Status = StatusTerminated
		}
		s.UpdatedAt = time.Now()
	})
	c.cfg.Broadcaster.Drop(sessionID)
	return c.store.Delete(sessionID)
}

// State is the point-in-time view returned by GetState.
type State struct {
	Session       *Session        `json:"session"`
	MasterContext golden.Snapshot `json:"master_context"`
}

// GetState returns a consistent snapshot of the session and its master
// context. No side effects.
func (c *Coordinator) GetState(sessionID string) (*State, error) {
	sess, err := c.get(sessionID)
	if err != nil {
		return nil, err
	}
	return &State{Session: sess, MasterContext: c.snapshot(sessionID)}, nil
}

// Template returns the regulatory template the coordinator runs.
func (c *Coordinator) Template() *template.Template {
	return c.cfg.Template
}

// Sessions lists all sessions in creation order.
func (c *Coordinator) Sessions() []*Session {
	return c.store.List()
}

// Subscribe streams the session's events, replaying from fromSeq.
func (c *Coordinator) Subscribe(sessionID string, fromSeq uint64) (<-chan events.Event, func(), error) {
	if _, err := c.get(sessionID); err != nil {
		return nil, nil, err
	}
	ch, cancel := c.cfg.Broadcaster.Subscribe(sessionID, fromSeq)
	return ch, cancel, nil
}

func (c *Coordinator) get(sessionID string) (*Session, error) {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

func (c *Coordinator) snapshot(sessionID string) golden.Snapshot {
	c.mu.Lock()
	store := c.contexts[sessionID]
	c.mu.Unlock()
	if store == nil {
		return golden.Snapshot{}
	}
	return store.Snapshot()
}

func (c *Coordinator) publishStatus(sessionID string, status Status) {
	c.cfg.Broadcaster.Publish(sessionID, events.Event{
		Type:    events.TypeStatusChanged,
		Payload: map[string]any{"status": string(status)},
	})
}

// fail moves the session to the terminal error state.
func (c *Coordinator) fail(sessionID, reason string) {
	_ = c.store.Update(sessionID, func(s *Session) {
		s.Status = StatusError
		s.UpdatedAt = time.Now()
	})
	c.cfg.Broadcaster.Publish(sessionID, events.Event{
		Type:    events.TypeStatusChanged,
		Payload: map[string]any{"status": string(StatusError), "reason": reason},
	})
}
