package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateTransitions(t *testing.T) {
	allowed := map[SessionState][]SessionState{
		SessionOpening: {SessionActive, SessionClosing, SessionExpired},
		SessionActive:  {SessionClosing, SessionExpired},
		SessionClosing: {SessionClosed},
		SessionClosed:  {},
		SessionExpired: {},
	}
	all := []SessionState{SessionOpening, SessionActive, SessionClosing, SessionClosed, SessionExpired}

	for from, targets := range allowed {
		allowedSet := map[SessionState]bool{}
		for _, to := range targets {
			allowedSet[to] = true
		}
		for _, to := range all {
			assert.Equal(t, allowedSet[to], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, SessionClosed.Terminal())
	assert.True(t, SessionExpired.Terminal())
	assert.False(t, SessionOpening.Terminal())
	assert.False(t, SessionActive.Terminal())
	assert.False(t, SessionClosing.Terminal())
}
