package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAssignsMonotonicSeq(t *testing.T) {
	hub := NewHub(16)
	ch := hub.Subscribe("inst-1", 8)
	defer hub.Unsubscribe("inst-1", ch)

	hub.Publish(Event{InstanceID: "inst-1", Type: TypeStage, Stage: "researching"})
	hub.Publish(Event{InstanceID: "inst-1", Type: TypeStage, Stage: "synthesizing"})

	first := <-ch
	second := <-ch
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.False(t, first.Timestamp.IsZero())
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	hub := NewHub(16)
	ch := hub.Subscribe("inst-1", 1)
	defer hub.Unsubscribe("inst-1", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(Event{InstanceID: "inst-1", Type: TypeProgress})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}

	// The slow subscriber kept only what fit; the ring kept everything.
	assert.Len(t, hub.ReplaySince("inst-1", 0), 10)
}

func TestReplaySince(t *testing.T) {
	hub := NewHub(4)
	for i := 0; i < 6; i++ {
		hub.Publish(Event{InstanceID: "inst-1", Type: TypeProgress})
	}

	// Ring capacity 4: seqs 3..6 survive.
	all := hub.ReplaySince("inst-1", 0)
	require.Len(t, all, 4)
	assert.Equal(t, uint64(3), all[0].Seq)
	assert.Equal(t, uint64(6), all[3].Seq)

	tail := hub.ReplaySince("inst-1", 5)
	require.Len(t, tail, 1)
	assert.Equal(t, uint64(6), tail[0].Seq)

	assert.Nil(t, hub.ReplaySince("unknown", 0))
}

func TestEventsIsolatedPerInstance(t *testing.T) {
	hub := NewHub(16)
	a := hub.Subscribe("inst-a", 8)
	b := hub.Subscribe("inst-b", 8)
	defer hub.Unsubscribe("inst-a", a)
	defer hub.Unsubscribe("inst-b", b)

	hub.Publish(Event{InstanceID: "inst-a", Type: TypeStage, Stage: "generating"})

	select {
	case ev := <-a:
		assert.Equal(t, "inst-a", ev.InstanceID)
	case <-time.After(time.Second):
		t.Fatal("subscriber for inst-a received nothing")
	}
	select {
	case ev := <-b:
		t.Fatalf("subscriber for inst-b received %+v", ev)
	default:
	}
}

func TestForgetDropsHistory(t *testing.T) {
	hub := NewHub(16)
	hub.Publish(Event{InstanceID: "inst-1", Type: TypeTerminal, Message: "completed"})
	require.NotEmpty(t, hub.ReplaySince("inst-1", 0))

	hub.Forget("inst-1")
	assert.Nil(t, hub.ReplaySince("inst-1", 0))
}
