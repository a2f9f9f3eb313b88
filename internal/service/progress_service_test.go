package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelCurve(t *testing.T) {
	tests := []struct {
		total     int64
		wantLevel int
	}{
		{0, 1},
		{99, 1},
		{100, 2},   // level 1 costs 100
		{249, 2},   // level 2 costs 150
		{250, 3},
		{474, 3},   // level 3 costs 225
		{475, 4},
	}

	for _, tt := range tests {
		level, _, _ := levelFor(tt.total)
		assert.Equal(t, tt.wantLevel, level, "total %d", tt.total)
	}
}

func TestLevelProgressAccounting(t *testing.T) {
	// 120 XP: 100 spent on level 1, 20 into level 2's 150
	level, intoLevel, span := levelFor(120)

	assert.Equal(t, 2, level)
	assert.Equal(t, int64(20), intoLevel)
	assert.Equal(t, int64(150), span)
}

func TestLevelNames(t *testing.T) {
	assert.Equal(t, "Beginner", levelName(1))
	assert.Equal(t, "Beginner", levelName(5))
	assert.Equal(t, "Intermediate", levelName(6))
	assert.Equal(t, "Advanced", levelName(11))
	assert.Equal(t, "Expert", levelName(16))
	assert.Equal(t, "Master", levelName(21))
	// past the named range stays at the top title
	assert.Equal(t, "Master", levelName(99))
}
