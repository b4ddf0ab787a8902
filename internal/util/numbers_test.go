package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinOr(t *testing.T) {
	assert.Equal(t, uint8(42), MinOr(nil, 42))
	assert.Equal(t, uint8(7), MinOr([]uint8{7}, 42))
	assert.Equal(t, uint8(3), MinOr([]uint8{90, 3, 50}, 42))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(0))
	assert.Equal(t, 0.5, Percent(50))
	assert.Equal(t, 1.0, Percent(255))
}
