package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardRelayDeliversAndClosesWithRelay(t *testing.T) {
	relay := NewRelay(4)
	relay.Enqueue(OutEvent{Type: EventTranscription, Data: "one"})
	relay.Close()

	done := make(chan struct{})
	defer close(done)
	ch := make(chan OutEvent, 4)
	go forwardRelay(relay, ch, done)

	var got []OutEvent
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, EventTranscription, got[0].Type)
}

func TestForwardRelayStopsWhenWriterGone(t *testing.T) {
	relay := NewRelay(4)
	relay.Enqueue(OutEvent{Type: EventTranscription, Data: "hi"})

	ch := make(chan OutEvent) // nobody reads; the send blocks
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		forwardRelay(relay, ch, done)
		close(finished)
	}()

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("forwarder still blocked after the writer went away")
	}
}
