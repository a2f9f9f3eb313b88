package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMasteryPctRounds(t *testing.T) {
	assert.Equal(t, 0, masteryPct(0, 0))
	assert.Equal(t, 0, masteryPct(3, 0))
	assert.Equal(t, 100, masteryPct(4, 4))
	assert.Equal(t, 50, masteryPct(1, 2))
	// 2/3 = 66.67%, rounds up rather than truncating to 66
	assert.Equal(t, 67, masteryPct(2, 3))
	assert.Equal(t, 33, masteryPct(1, 3))
	assert.Equal(t, 86, masteryPct(6, 7))
}
