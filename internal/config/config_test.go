package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, 16000, cfg.Engine.SendSampleRate)
	assert.Equal(t, 24000, cfg.Engine.ReceiveSampleRate)
	assert.Equal(t, 3200, cfg.Engine.FrameBytes)

	assert.Equal(t, 2*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 256, cfg.Session.OutboundQueueSize)

	assert.Equal(t, 20, cfg.XP.BaseSessionXP)
	assert.Equal(t, 0.80, cfg.XP.AccuracyBonusThreshold)
	assert.Equal(t, 60, cfg.XP.PassMark)
	assert.Equal(t, []string{"speaking", "listening", "grammar"}, cfg.XP.RequiredModalities)

	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.XP.BaseSessionXP = 50
	cfg.XP.PassMark = 75
	cfg.Engine.FrameBytes = 6400
	cfg.Timezone = "Europe/Madrid"

	applyDefaults(cfg)

	assert.Equal(t, 50, cfg.XP.BaseSessionXP)
	assert.Equal(t, 75, cfg.XP.PassMark)
	assert.Equal(t, 6400, cfg.Engine.FrameBytes)
	assert.Equal(t, "Europe/Madrid", cfg.Timezone)
}
