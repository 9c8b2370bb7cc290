package ids

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEpicIDMatchesPattern(t *testing.T) {
	id, err := NewEpicID()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-f0-9]{6}$`), id)
}

func TestTaskID(t *testing.T) {
	assert.Equal(t, "abc123.1", TaskID("abc123", 1))
}

func TestOffsetAllocatorMonotonic(t *testing.T) {
	a := NewOffsetAllocator(0)
	first := a.Next()
	second := a.Next()
	assert.Greater(t, second, first)

	a.Reset(0)
	assert.Equal(t, int64(0), a.Current())
}
