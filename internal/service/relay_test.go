package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(r *Relay) []OutEvent {
	var out []OutEvent
	for {
		ev, ok := r.TryNext()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestRelayPreservesOrder(t *testing.T) {
	r := NewRelay(16)

	r.Enqueue(OutEvent{Type: EventTranscription, Data: "one"})
	r.Enqueue(OutEvent{Type: EventAudio, Binary: []byte{1}})
	r.Enqueue(OutEvent{Type: EventFeedback, Data: "two"})
	r.Enqueue(OutEvent{Type: EventTurnComplete, Data: "three"})

	got := drain(r)
	require.Len(t, got, 4)
	assert.Equal(t, EventTranscription, got[0].Type)
	assert.Equal(t, EventAudio, got[1].Type)
	assert.Equal(t, EventFeedback, got[2].Type)
	assert.Equal(t, EventTurnComplete, got[3].Type)
}

func TestRelayDropsOldestAudioWhenFull(t *testing.T) {
	r := NewRelay(4)

	for i := 0; i < 4; i++ {
		r.Enqueue(OutEvent{Type: EventAudio, Binary: []byte{byte(i)}})
	}
	// fifth frame evicts frame 0
	r.Enqueue(OutEvent{Type: EventAudio, Binary: []byte{4}})

	got := drain(r)
	require.Len(t, got, 4)
	assert.Equal(t, []byte{1}, got[0].Binary)
	assert.Equal(t, []byte{4}, got[3].Binary)
	assert.Equal(t, int64(1), r.Dropped())
}

func TestRelayNeverDropsControlEvents(t *testing.T) {
	r := NewRelay(4)

	r.Enqueue(OutEvent{Type: EventAudio, Binary: []byte{0}})
	for i := 0; i < 10; i++ {
		r.Enqueue(OutEvent{Type: EventTranscription, Data: fmt.Sprintf("t%d", i)})
	}

	got := drain(r)

	var controls int
	for _, ev := range got {
		if !ev.IsAudio() {
			controls++
		}
	}
	assert.Equal(t, 10, controls)
}

func TestRelayControlOverflowGrowsInsteadOfDropping(t *testing.T) {
	r := NewRelay(2)

	for i := 0; i < 8; i++ {
		r.Enqueue(OutEvent{Type: EventFeedback, Data: i})
	}

	got := drain(r)
	require.Len(t, got, 8)
	assert.Equal(t, int64(0), r.Dropped())
	for i, ev := range got {
		assert.Equal(t, i, ev.Data)
	}
}

func TestRelayKeepsControlOrderAcrossDrops(t *testing.T) {
	r := NewRelay(3)

	r.Enqueue(OutEvent{Type: EventTranscription, Data: "before"})
	r.Enqueue(OutEvent{Type: EventAudio, Binary: []byte{0}})
	r.Enqueue(OutEvent{Type: EventTurnComplete, Data: "after"})
	// at capacity, evicts the audio frame between the two control events
	r.Enqueue(OutEvent{Type: EventAudio, Binary: []byte{1}})

	got := drain(r)
	require.Len(t, got, 3)
	assert.Equal(t, EventTranscription, got[0].Type)
	assert.Equal(t, "before", got[0].Data)
	assert.Equal(t, EventTurnComplete, got[1].Type)
	assert.Equal(t, "after", got[1].Data)
	assert.Equal(t, EventAudio, got[2].Type)
}

func TestRelayCloseWakesBlockedReader(t *testing.T) {
	r := NewRelay(4)

	done := make(chan bool)
	go func() {
		_, ok := r.Next()
		done <- ok
	}()

	r.Close()
	assert.False(t, <-done)
}

func TestRelayRejectsAfterClose(t *testing.T) {
	r := NewRelay(4)
	r.Close()
	assert.False(t, r.Enqueue(OutEvent{Type: EventAudio}))
}
