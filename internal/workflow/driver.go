package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/caldermed/psurd/internal/agentrun"
	"github.com/caldermed/psurd/internal/events"
	"github.com/caldermed/psurd/internal/qc"
	"github.com/caldermed/psurd/internal/taskgraph"
)

// drive is the per-session driver loop. Sections run strictly one at a
// time: every section shares and mutates the single master context, so
// serializing avoids concurrent-merge races. The loop exits when the
// session completes, a section exhausts its revision budget, the session
// is deleted, or an invariant breaks.
func (c *Coordinator) drive(ctx context.Context, sessionID string) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !c.waitIfPaused(ctx, sessionID) {
			return
		}

		sess, err := c.get(sessionID)
		if err != nil {
			return
		}

		states := make(map[string]taskgraph.Status, len(sess.Tasks))
		approved := 0
		for id, t := range sess.Tasks {
			states[id] = t.State
			if t.State == taskgraph.StatusApproved {
				approved++
			}
		}

		ready := c.graph.Ready(states)
		// Every unblocked task becomes observable as ready, not just the
		// one about to run.
		for _, id := range ready {
			if states[id] == taskgraph.StatusPending {
				c.setTask(sessionID, id, func(t *SectionTask) {
					t.State = taskgraph.StatusReady
				})
			}
		}
		if len(ready) == 0 {
			if approved == len(sess.Tasks) {
				c.complete(sessionID, approved)
			}
			// Otherwise a section failed and the session is already in
			// needs_human; either way the driver is done.
			return
		}

		if !c.runSection(ctx, sessionID, ready[0]) {
			return
		}
	}
}

// waitIfPaused blocks at the section boundary while a pause is requested.
// Returns false when the driver should exit.
func (c *Coordinator) waitIfPaused(ctx context.Context, sessionID string) bool {
	c.mu.Lock()
	paused := c.paused[sessionID]
	wake := c.wake[sessionID]
	c.mu.Unlock()
	if !paused {
		return true
	}

	_ = c.store.Update(sessionID, func(s *Session) {
		s.Status = StatusPaused
		s.UpdatedAt = time.Now()
	})
	c.publishStatus(sessionID, StatusPaused)

	for {
		select {
		case <-ctx.Done():
			return false
		case <-wake:
		}
		c.mu.Lock()
		paused = c.paused[sessionID]
		c.mu.Unlock()
		if !paused {
			break
		}
	}

	_ = c.store.Update(sessionID, func(s *Session) {
		s.Status = StatusRunning
		s.UpdatedAt = time.Now()
	})
	c.publishStatus(sessionID, StatusRunning)
	return true
}

// runSection takes one section from ready to approved or failed, running
// the draft/review cycle up to the revision budget. Returns false when
// the session can make no further progress and the driver should exit.
func (c *Coordinator) runSection(ctx context.Context, sessionID, sectionID string) bool {
	sec, ok := c.cfg.Template.Section(sectionID)
	if !ok {
		c.fail(sessionID, fmt.Sprintf("no section %q in template %s", sectionID, c.cfg.Template.ID))
		return false
	}
	sess, err := c.get(sessionID)
	if err != nil {
		return false
	}
	task := sess.Tasks[sectionID]
	agent := c.cfg.Roster[task.Agent]

	var feedback []string
	for attempt := 1; attempt <= c.cfg.MaxRevisions; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		c.setTask(sessionID, sectionID, func(t *SectionTask) {
			t.State = taskgraph.StatusInProgress
			t.Attempts = attempt
		})
		c.cfg.Broadcaster.Publish(sessionID, events.Event{
			Type: events.TypeSectionStarted, Section: sectionID, Agent: task.Agent,
			Payload: map[string]any{"attempt": attempt},
		})

		draft, runErr := c.invoke(ctx, agentrun.RunInput{
			Section:    sec,
			Agent:      agent,
			Resolution: task.Resolution,
			Snapshot:   c.snapshot(sessionID),
			Feedback:   feedback,
		})
		if runErr != nil {
			if ctx.Err() != nil {
				return false
			}
			note := fmt.Sprintf("agent invocation failed: %v", runErr)
			c.cfg.Broadcaster.Publish(sessionID, events.Event{
				Type: events.TypeSectionFailed, Section: sectionID, Agent: task.Agent,
				Feedback: note,
			})
			if attempt == c.cfg.MaxRevisions {
				return c.exhaust(sessionID, sectionID, task.Agent)
			}
			c.setTask(sessionID, sectionID, func(t *SectionTask) {
				t.State = taskgraph.StatusRevisionRequested
			})
			continue
		}

		if ctx.Err() != nil {
			return false
		}
		c.setTask(sessionID, sectionID, func(t *SectionTask) {
			t.State = taskgraph.StatusInReview
			t.Content = draft.Content
		})

		verdict, qcErr := c.review(ctx, qc.CheckInput{
			Section:  sec,
			Draft:    draft,
			Snapshot: c.snapshot(sessionID),
		})
		if qcErr != nil {
			if ctx.Err() != nil {
				return false
			}
			c.fail(sessionID, fmt.Sprintf("review infrastructure failure on section %s: %v", sectionID, qcErr))
			return false
		}

		if verdict.Approved {
			if ctx.Err() != nil {
				return false
			}
			// The master context may be gone if the session was deleted
			// while the review was in flight.
			c.mu.Lock()
			store := c.contexts[sessionID]
			c.mu.Unlock()
			if store == nil {
				return false
			}
			for key, value := range draft.Facts {
				store.MergeCalculated(key, value)
			}

			c.setTask(sessionID, sectionID, func(t *SectionTask) {
				t.State = taskgraph.StatusApproved
			})
			c.cfg.Broadcaster.Publish(sessionID, events.Event{
				Type: events.TypeSectionApproved, Section: sectionID, Agent: task.Agent,
				Payload: map[string]any{"attempt": attempt, "words": draft.Words},
			})
			return true
		}

		fb := verdict.FeedbackText()
		feedback = append(feedback, fb)
		c.setTask(sessionID, sectionID, func(t *SectionTask) {
			t.Feedback = append(t.Feedback, fb)
		})
		c.cfg.Broadcaster.Publish(sessionID, events.Event{
			Type: events.TypeSectionRejected, Section: sectionID, Agent: task.Agent,
			Feedback: fb, Payload: map[string]any{"attempt": attempt},
		})

		if attempt == c.cfg.MaxRevisions {
			return c.exhaust(sessionID, sectionID, task.Agent)
		}
		c.setTask(sessionID, sectionID, func(t *SectionTask) {
			t.State = taskgraph.StatusRevisionRequested
		})
	}
	return false
}

// invoke runs the agent call on its own deadline, detached from the
// driver's context: session deletion stops further tasks but never
// interrupts a third-party call mid-flight.
func (c *Coordinator) invoke(ctx context.Context, in agentrun.RunInput) (agentrun.Draft, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
	defer cancel()
	return c.cfg.Runner.Run(callCtx, in)
}

func (c *Coordinator) review(ctx context.Context, in qc.CheckInput) (qc.Verdict, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
	defer cancel()
	return c.cfg.Reviewer.Review(callCtx, in)
}

// exhaust marks the section failed and parks the session for a human.
// Always returns false.
func (c *Coordinator) exhaust(sessionID, sectionID, agent string) bool {
	c.setTask(sessionID, sectionID, func(t *SectionTask) {
		t.State = taskgraph.StatusFailed
	})
	_ = c.store.Update(sessionID, func(s *Session) {
		s.Status = StatusNeedsHuman
		s.UpdatedAt = time.Now()
	})
	c.cfg.Broadcaster.Publish(sessionID, events.Event{
		Type: events.TypeSectionFailed, Section: sectionID, Agent: agent,
		Feedback: fmt.Sprintf("revision budget of %d attempts exhausted", c.cfg.MaxRevisions),
	})
	c.publishStatus(sessionID, StatusNeedsHuman)
	return false
}

func (c *Coordinator) complete(sessionID string, approved int) {
	_ = c.store.Update(sessionID, func(s *Session) {
		s.Status = StatusComplete
		s.UpdatedAt = time.Now()
	})
	c.publishStatus(sessionID, StatusComplete)
	c.cfg.Broadcaster.Publish(sessionID, events.Event{
		Type:    events.TypeMessage,
		Payload: map[string]any{"text": fmt.Sprintf("report complete: %d sections approved", approved)},
	})
}

func (c *Coordinator) setTask(sessionID, sectionID string, fn func(*SectionTask)) {
	_ = c.store.Update(sessionID, func(s *Session) {
		if t, ok := s.Tasks[sectionID]; ok {
			fn(t)
			t.UpdatedAt = time.Now()
		}
	})
}
