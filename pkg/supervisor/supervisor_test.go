package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/agentcore/pkg/runtimeclient"
	"github.com/kadirpekel/agentcore/pkg/stream"
	"github.com/kadirpekel/agentcore/pkg/taskregistry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor() (*Supervisor, *taskregistry.Registry, *runtimeclient.InMemoryClient) {
	reg := taskregistry.New()
	rt := runtimeclient.NewInMemoryClient()
	cfg := Config{BaseIntervalMs: 30000, MaxIntervalMs: 120000, StuckThresholdMs: 30000, RegistryTTLMs: 3600000}
	return New(reg, rt, nil, cfg), reg, rt
}

func TestNextIntervalWidensWithComplexity(t *testing.T) {
	s, reg, rt := newTestSupervisor()
	ctx := context.Background()

	assert.Equal(t, int64(120000), s.NextInterval().Milliseconds())

	sid, _ := rt.CreateSession(ctx, "", "t")
	id := reg.Register(taskregistry.Spec{SessionID: sid, Complexity: taskregistry.ComplexityLow})
	reg.UpdateStatus(id, taskregistry.StatusRunning, "", "")
	assert.Equal(t, int64(30000), s.NextInterval().Milliseconds())

	id2 := reg.Register(taskregistry.Spec{SessionID: sid, Complexity: taskregistry.ComplexityHigh})
	reg.UpdateStatus(id2, taskregistry.StatusRunning, "", "")
	assert.Equal(t, int64(120000), s.NextInterval().Milliseconds())
}

func TestRunPassFetchesResultWhenIdle(t *testing.T) {
	s, reg, rt := newTestSupervisor()
	ctx := context.Background()

	sid, _ := rt.CreateSession(ctx, "", "t")
	id := reg.Register(taskregistry.Spec{SessionID: sid, MaxRetries: 1, TimeoutMs: 60000})
	reg.UpdateStatus(id, taskregistry.StatusRunning, "", "")
	rt.Reply(sid, "the answer")

	require.NoError(t, s.RunPass(ctx))

	task, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, taskregistry.StatusCompleted, task.Status)
	assert.Equal(t, "the answer", task.Result)
}

func TestRunPassRetriesTimedOutTask(t *testing.T) {
	s, reg, rt := newTestSupervisor()
	ctx := context.Background()

	sid, _ := rt.CreateSession(ctx, "parent", "t")
	id := reg.Register(taskregistry.Spec{SessionID: sid, Agent: "executor", Prompt: "go", MaxRetries: 2, TimeoutMs: 1, ParentSessionID: "parent"})
	reg.UpdateStatus(id, taskregistry.StatusRunning, "", "")
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, s.RunPass(ctx))

	task, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, taskregistry.StatusRunning, task.Status)
	assert.Equal(t, 1, task.RetryCount)
	assert.NotEqual(t, sid, task.SessionID)
}

func TestRunPassExpiresOverdueCheckpoints(t *testing.T) {
	reg := taskregistry.New()
	rt := runtimeclient.NewInMemoryClient()
	st := stream.New(t.TempDir(), stream.Config{MaxHistorySize: 100, MaxCheckpoints: 20}, nil)
	ctx := context.Background()
	_, err := st.Initialize(ctx)
	require.NoError(t, err)

	cp, err := st.RequestCheckpoint("pick-a-plan", []stream.CheckpointOption{{ID: "a", Label: "Plan A"}}, "planner", 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	cfg := Config{BaseIntervalMs: 30000, MaxIntervalMs: 120000, StuckThresholdMs: 30000, RegistryTTLMs: 3600000}
	s := New(reg, rt, nil, cfg, WithCheckpointStream(st))

	require.NoError(t, s.RunPass(ctx))

	pending := st.GetPendingCheckpoints()
	for _, p := range pending {
		assert.NotEqual(t, cp.ID, p.ID)
	}
}
