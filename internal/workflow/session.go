// Package workflow owns the session state machine and its driver loop:
// one goroutine per running session walks the section task graph, invokes
// the agent runner and QC reviewer, and publishes every transition as an
// event.
package workflow

import (
	"time"

	"github.com/caldermed/psurd/internal/ingest"
	"github.com/caldermed/psurd/internal/provider"
	"github.com/caldermed/psurd/internal/taskgraph"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusValidating Status = "validating"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusNeedsHuman Status = "needs_human"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusTerminated Status = "terminated"
)

// IsTerminal reports whether the session can make no further progress.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusTerminated
}

// SectionTask tracks one section through drafting and review. Attempts
// counts completed generation attempts, whether they ended in a QC
// rejection or a runner failure.
type SectionTask struct {
	ID         string              `json:"id"`
	Agent      string              `json:"agent"`
	DependsOn  []string            `json:"depends_on,omitempty"`
	State      taskgraph.Status    `json:"state"`
	Attempts   int                 `json:"attempt_count"`
	Content    string              `json:"content,omitempty"`
	Feedback   []string            `json:"feedback,omitempty"`
	Resolution provider.Resolution `json:"resolution"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Metadata is the operator-supplied session setup.
type Metadata struct {
	DeviceName  string    `json:"device_name"`
	ReportTitle string    `json:"report_title,omitempty"`
	TemplateID  string    `json:"template_id,omitempty"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Session is one report-generation run.
type Session struct {
	ID        string                  `json:"id"`
	Metadata  Metadata                `json:"metadata"`
	Status    Status                  `json:"status"`
	Tasks     map[string]*SectionTask `json:"tasks"`
	Issues    []ingest.Issue          `json:"issues,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}
