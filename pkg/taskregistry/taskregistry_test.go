package taskregistry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatKeepsTaskOffStuckList(t *testing.T) {
	r := New()
	id := r.Register(Spec{SessionID: "s1", MaxRetries: 2, TimeoutMs: 5000})
	r.UpdateStatus(id, StatusRunning, "", "")

	r.Heartbeat(id)
	stuck := r.GetStuckTasks(int64(50))
	for _, s := range stuck {
		assert.NotEqual(t, id, s.ID)
	}
}

func TestTimeoutDetection(t *testing.T) {
	r := New()
	id := r.Register(Spec{SessionID: "s1", MaxRetries: 2, TimeoutMs: 1})
	r.UpdateStatus(id, StatusRunning, "", "")

	time.Sleep(5 * time.Millisecond)
	timedOut := r.GetTimedOutTasks()
	require.Len(t, timedOut, 1)
	assert.Equal(t, id, timedOut[0].ID)
}

func TestRetryIncrement(t *testing.T) {
	r := New()
	id := r.Register(Spec{SessionID: "s1", MaxRetries: 2, TimeoutMs: 50})

	n, ok := r.IncrementRetry(id)
	require.True(t, ok)
	assert.Equal(t, 1, n)

	n, _ = r.IncrementRetry(id)
	assert.Equal(t, 2, n)
}

func TestCleanupRemovesOldTerminalTasks(t *testing.T) {
	r := New()
	id := r.Register(Spec{SessionID: "s1"})
	r.UpdateStatus(id, StatusCompleted, "ok", "")
	time.Sleep(2 * time.Millisecond)

	removed := r.Cleanup(0)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Count())
}
