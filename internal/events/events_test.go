package events

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_AssignsMonotonicSequencePerSession(t *testing.T) {
	b := NewBroadcaster(8)

	for i := 1; i <= 5; i++ {
		ev := b.Publish("s1", Event{Type: TypeMessage})
		assert.Equal(t, uint64(i), ev.Seq)
	}
	// Independent counter per session.
	ev := b.Publish("s2", Event{Type: TypeMessage})
	assert.Equal(t, uint64(1), ev.Seq)
}

func TestSubscribe_LiveDelivery(t *testing.T) {
	b := NewBroadcaster(8)
	ch, cancel := b.Subscribe("s1", 0)
	defer cancel()

	b.Publish("s1", Event{Type: TypeSectionStarted, Section: "C"})

	select {
	case ev := <-ch:
		assert.Equal(t, "C", ev.Section)
		assert.Equal(t, uint64(1), ev.Seq)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSubscribe_ReplayThenLive_NoGapsNoDuplicates(t *testing.T) {
	b := NewBroadcaster(256)

	// First observer sees events 1..40 then disconnects.
	ch, cancel := b.Subscribe("s1", 0)
	for i := 0; i < 40; i++ {
		b.Publish("s1", Event{Type: TypeMessage})
	}
	for i := 0; i < 40; i++ {
		<-ch
	}
	cancel()

	// 41..70 happen while nobody is listening.
	for i := 40; i < 70; i++ {
		b.Publish("s1", Event{Type: TypeMessage})
	}

	// Resubscribe from the last sequence seen, then 71..100 land live.
	ch2, cancel2 := b.Subscribe("s1", 40)
	defer cancel2()
	for i := 70; i < 100; i++ {
		b.Publish("s1", Event{Type: TypeMessage})
	}

	var got []uint64
	timeout := time.After(2 * time.Second)
	for len(got) < 60 {
		select {
		case ev := <-ch2:
			got = append(got, ev.Seq)
		case <-timeout:
			t.Fatalf("received %d of 60 events", len(got))
		}
	}

	require.Len(t, got, 60)
	for i, seq := range got {
		assert.Equal(t, uint64(41+i), seq)
	}
}

func TestPublish_StalledSubscriberIsClosed(t *testing.T) {
	b := NewBroadcaster(2)
	ch, cancel := b.Subscribe("s1", 0)
	defer cancel()

	// Fill the buffer and overflow it without draining.
	for i := 0; i < 5; i++ {
		b.Publish("s1", Event{Type: TypeMessage})
	}

	// Drain whatever was buffered; the channel must end up closed.
	closed := false
	timeout := time.After(time.Second)
	for !closed {
		select {
		case _, ok := <-ch:
			if !ok {
				closed = true
			}
		case <-timeout:
			t.Fatal("channel never closed")
		}
	}

	// The log is intact, so a resubscribe recovers everything.
	ch2, cancel2 := b.Subscribe("s1", 0)
	defer cancel2()
	for i := 1; i <= 5; i++ {
		ev := <-ch2
		assert.Equal(t, uint64(i), ev.Seq)
	}
}

func TestDrop_ClosesSubscribersAndForgetsLog(t *testing.T) {
	b := NewBroadcaster(8)
	ch, _ := b.Subscribe("s1", 0)
	b.Publish("s1", Event{Type: TypeMessage})

	b.Drop("s1")

	// Drain the buffered event, then observe close.
	<-ch
	_, ok := <-ch
	assert.False(t, ok)
	assert.Nil(t, b.History("s1"))
}

func TestDrop_LatePublishDoesNotRecreateLog(t *testing.T) {
	b := NewBroadcaster(8)
	b.Publish("s1", Event{Type: TypeMessage})

	b.Drop("s1")

	// A driver goroutine still winding down may publish after the
	// session is gone; the log must stay gone.
	b.Publish("s1", Event{Type: TypeStatusChanged})
	assert.Nil(t, b.History("s1"))

	// Subscribing to a dropped session yields a closed channel.
	ch, cancel := b.Subscribe("s1", 0)
	defer cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestCancel_IsIdempotent(t *testing.T) {
	b := NewBroadcaster(8)
	_, cancel := b.Subscribe("s1", 0)
	cancel()
	cancel()
}

func TestPublish_ConcurrentPublishersKeepOrdering(t *testing.T) {
	b := NewBroadcaster(2048)
	ch, cancel := b.Subscribe("s1", 0)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Publish("s1", Event{Type: TypeMessage, Payload: map[string]any{
					"worker": fmt.Sprintf("w%d", w),
				}})
			}
		}(w)
	}
	wg.Wait()

	var last uint64
	for i := 0; i < 400; i++ {
		ev := <-ch
		assert.Equal(t, last+1, ev.Seq)
		last = ev.Seq
	}
	assert.Len(t, b.History("s1"), 400)
}
