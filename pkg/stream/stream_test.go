package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	dir := t.TempDir()
	s := New(dir, Config{MaxStreamSizeMb: 10, MaxHistorySize: 100, MaxCheckpoints: 20, SnapshotGcHours: 48}, nil)
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func TestAppendThenHistory(t *testing.T) {
	s := newTestStream(t)

	e, err := s.Append(Event{Type: EventAgentSpawned, Actor: "planner"})
	require.NoError(t, err)

	history := s.GetEventHistory(WildcardEventType, 10)
	require.Len(t, history, 1)
	assert.Equal(t, e.ID, history[0].ID)
	assert.Greater(t, e.Metadata.Offset, int64(0))
}

func TestOffsetMonotonicity(t *testing.T) {
	s := newTestStream(t)

	e1, err := s.Append(Event{Type: EventAgentSpawned})
	require.NoError(t, err)
	e2, err := s.Append(Event{Type: EventAgentCompleted})
	require.NoError(t, err)

	assert.Greater(t, e2.Metadata.Offset, e1.Metadata.Offset)
}

func TestResumeReplaysEvents(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{MaxStreamSizeMb: 10, MaxHistorySize: 100, MaxCheckpoints: 20}

	s1 := New(dir, cfg, nil)
	_, err := s1.Initialize(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := s1.Append(Event{Type: EventTaskProgress})
		require.NoError(t, err)
	}
	require.NoError(t, s1.Shutdown())

	s2 := New(dir, cfg, nil)
	result, err := s2.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.EventsReplayed)
}

func TestCheckpointLifecycle(t *testing.T) {
	s := newTestStream(t)

	cp, err := s.RequestCheckpoint("pick-a-plan", []CheckpointOption{{ID: "a", Label: "Plan A"}}, "planner", 1000)
	require.NoError(t, err)
	assert.Len(t, s.GetPendingCheckpoints(), 1)

	ok, err := s.ApproveCheckpoint(cp.ID, "chief-of-staff", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.GetPendingCheckpoints())

	ok, err = s.ApproveCheckpoint(cp.ID, "chief-of-staff", "a")
	require.NoError(t, err)
	assert.False(t, ok, "repeated resolve must return false")
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	s := newTestStream(t)

	received := make(chan Event, 10)
	unsub := s.Subscribe(WildcardEventType, func(e Event) { received <- e })
	defer unsub()

	_, err := s.Append(Event{Type: EventAgentSpawned})
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, EventAgentSpawned, e.Type)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received event")
	}
}

func TestContextSnapshotRoundTrip(t *testing.T) {
	s := newTestStream(t)

	ac := AgentContext{SessionID: "sess-1", AgentName: "executor", Prompt: "do the thing"}
	_, err := s.CreateContextSnapshot(ac)
	require.NoError(t, err)

	restored, ok := s.RestoreContext("sess-1")
	require.True(t, ok)
	assert.Equal(t, "executor", restored.AgentName)
}
