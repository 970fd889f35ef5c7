// Package events provides the per-session event log and fan-out. Every
// workflow transition is published here; observers subscribe live or
// replay from a sequence number after a disconnect.
package events

import (
	"sync"
	"time"
)

// Event types emitted by the workflow driver.
const (
	TypeSectionStarted  = "section_started"
	TypeSectionApproved = "section_approved"
	TypeSectionRejected = "section_rejected"
	TypeSectionFailed   = "section_failed"
	TypeStatusChanged   = "status_changed"
	TypeMessage         = "message"
)

// Event is one immutable, strictly-ordered-per-session record. Seq is
// assigned by the broadcaster at publish time, starting at 1.
type Event struct {
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"sequence"`
	Type      string         `json:"type"`
	Section   string         `json:"section_id,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Feedback  string         `json:"feedback,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Time      time.Time      `json:"time"`
}

// subscriber is one live observer channel. A subscriber that cannot keep
// up is dropped (its channel closed); it can resubscribe with the last
// sequence it saw and replay the gap.
type subscriber struct {
	ch     chan Event
	closed bool
}

type sessionLog struct {
	seq  uint64
	log  []Event
	subs map[*subscriber]struct{}
}

// Broadcaster assigns sequence numbers, retains each session's full event
// log for replay, and fans out to live subscribers. Safe for concurrent
// publish/subscribe/unsubscribe across sessions and within one session.
type Broadcaster struct {
	mu       sync.Mutex
	sessions map[string]*sessionLog
	dropped  map[string]bool
	buffer   int
}

// NewBroadcaster creates a broadcaster whose subscriber channels buffer
// the given number of events before the subscriber is considered stalled.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{
		sessions: make(map[string]*sessionLog),
		dropped:  make(map[string]bool),
		buffer:   buffer,
	}
}

func (b *Broadcaster) session(id string) *sessionLog {
	sl, ok := b.sessions[id]
	if !ok {
		sl = &sessionLog{subs: make(map[*subscriber]struct{})}
		b.sessions[id] = sl
	}
	return sl
}

// Publish assigns the next sequence number for the session, appends the
// event to the replay log, and delivers it to every live subscriber.
// Sequence assignment and delivery happen under one lock, so no
// subscriber can observe a gap between replay and live delivery.
func (b *Broadcaster) Publish(sessionID string, ev Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A late publish from a driver still winding down must not
	// resurrect a deleted session's log.
	if b.dropped[sessionID] {
		ev.SessionID = sessionID
		if ev.Time.IsZero() {
			ev.Time = time.Now()
		}
		return ev
	}

	sl := b.session(sessionID)
	sl.seq++
	ev.SessionID = sessionID
	ev.Seq = sl.seq
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	sl.log = append(sl.log, ev)

	for sub := range sl.subs {
		select {
		case sub.ch <- ev:
		default:
			// Stalled observer. Close it out; replay-on-resubscribe
			// covers whatever it missed.
			delete(sl.subs, sub)
			sub.closed = true
			close(sub.ch)
		}
	}
	return ev
}

// Subscribe returns a channel of events for the session and a cancel
// function. If fromSeq is non-zero, events with sequence greater than
// fromSeq are replayed first; live events follow with no gap and no
// duplicate below the replay point. The channel is closed on cancel, on
// session drop, or if the subscriber falls too far behind.
func (b *Broadcaster) Subscribe(sessionID string, fromSeq uint64) (<-chan Event, func()) {
	b.mu.Lock()
	if b.dropped[sessionID] {
		b.mu.Unlock()
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sl := b.session(sessionID)

	var backlog []Event
	for _, ev := range sl.log {
		if ev.Seq > fromSeq {
			backlog = append(backlog, ev)
		}
	}

	sub := &subscriber{ch: make(chan Event, b.buffer+len(backlog))}
	for _, ev := range backlog {
		sub.ch <- ev
	}
	sl.subs[sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub.closed {
			return
		}
		sub.closed = true
		delete(sl.subs, sub)
		close(sub.ch)
	}
	return sub.ch, cancel
}

// History returns a copy of the session's event log.
func (b *Broadcaster) History(sessionID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sl, ok := b.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Event, len(sl.log))
	copy(out, sl.log)
	return out
}

// Drop discards a session's log and closes its subscribers. Called when
// the session itself is deleted.
func (b *Broadcaster) Drop(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dropped[sessionID] = true
	sl, ok := b.sessions[sessionID]
	if !ok {
		return
	}
	for sub := range sl.subs {
		sub.closed = true
		close(sub.ch)
	}
	delete(b.sessions, sessionID)
}
