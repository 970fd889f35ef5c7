// Package taskgraph answers the scheduling question at the heart of the
// workflow: given the current state of every section task, which sections
// may start next. The dependency data comes from the report template; this
// package owns the section-task state vocabulary and the ready query.
package taskgraph

import (
	"fmt"

	"github.com/caldermed/psurd/internal/template"
)

// Status is the lifecycle state of one section task.
type Status string

const (
	StatusPending           Status = "pending"
	StatusReady             Status = "ready"
	StatusInProgress        Status = "in_progress"
	StatusInReview          Status = "in_review"
	StatusRevisionRequested Status = "revision_requested"
	StatusApproved          Status = "approved"
	StatusFailed            Status = "failed"
)

// IsTerminal reports whether a task in this state will never run again.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusFailed
}

// Graph is the immutable dependency structure for one template. Safe for
// concurrent use: it is never mutated after construction.
type Graph struct {
	order []string
	deps  map[string][]string
}

// New builds a Graph from a validated template. The template's own
// Validate covers cycles; New re-checks so a Graph can never exist over a
// cyclic definition regardless of caller discipline.
func New(t *template.Template) (*Graph, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("taskgraph: %w", err)
	}
	g := &Graph{
		order: t.SectionIDs(),
		deps:  make(map[string][]string, len(t.Sections)),
	}
	for _, s := range t.Sections {
		deps := make([]string, len(s.DependsOn))
		copy(deps, s.DependsOn)
		g.deps[s.ID] = deps
	}
	return g, nil
}

// Order returns all section IDs in template order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependencies returns the direct dependency set of a section.
func (g *Graph) Dependencies(id string) []string {
	deps := g.deps[id]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Ready is a pure function of the current task states: it returns every
// unstarted section all of whose dependencies are approved, in template
// order. A section already marked ready stays eligible, so the query is
// idempotent across driver iterations. Sections missing from states are
// ignored.
func (g *Graph) Ready(states map[string]Status) []string {
	var ready []string
	for _, id := range g.order {
		if st := states[id]; st != StatusPending && st != StatusReady {
			continue
		}
		satisfied := true
		for _, dep := range g.deps[id] {
			if states[dep] != StatusApproved {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, id)
		}
	}
	return ready
}
