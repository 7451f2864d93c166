package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsMonotonic(t *testing.T) {
	require.NoError(t, Init(3))

	prev := New()
	for range 1000 {
		next := New()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := New()
	assert.WithinRange(t, Time(id), before, time.Now().Add(time.Second))
}
