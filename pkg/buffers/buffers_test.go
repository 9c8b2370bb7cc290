package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalFIFO(t *testing.T) {
	b := NewSignalBuffer()

	a := b.Enqueue(UpwardSignal{SourceAgent: "worker-a", TargetSessionID: "parent-2"})
	c := b.Enqueue(UpwardSignal{SourceAgent: "worker-b", TargetSessionID: "parent-2"})

	assert.True(t, b.HasSignals("parent-2"))

	flushed := b.Flush("parent-2")
	assert.Equal(t, []string{a.ID, c.ID}, []string{flushed[0].ID, flushed[1].ID})
	assert.False(t, b.HasSignals("parent-2"))
}

func TestPromptBufferFlushEmpty(t *testing.T) {
	b := NewPromptBuffer()
	assert.Empty(t, b.Flush("none"))
	assert.False(t, b.HasSignals("none"))
}
