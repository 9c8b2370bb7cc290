package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/runtimeclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDefinition = `---
name: onboard-user
trigger:
  - user.signup
entry_agent: planner
---

## Phase 1: Plan
- Agent: planner
  - Prompt: "Plan onboarding for {{task}}"
  - Wait: true
  - Checkpoint: false

## Phase 2: Confirm
- Agent: validator
  - Prompt: "Confirm the plan"
  - Wait: false
  - Checkpoint: true

## Phase 3: Execute
- Agent: executor
  - Prompt: "Execute the plan"
  - Wait: true
  - Checkpoint: false
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(sampleDefinition))
	require.NoError(t, err)

	assert.Equal(t, "onboard-user", def.Name)
	assert.Equal(t, []string{"user.signup"}, def.Trigger)
	assert.Equal(t, "planner", def.EntryAgent)
	require.Len(t, def.Phases, 3)
	assert.Equal(t, "planner", def.Phases[0].Steps[0].Agent)
	assert.True(t, def.Phases[0].Steps[0].Wait)
	assert.True(t, def.Phases[1].Steps[0].Checkpoint)
}

// autoReplier polls an InMemoryClient and replies to any busy session so
// Wait=true steps resolve without the test sleeping through every poll
// interval.
func autoReplier(ctx context.Context, rt *runtimeclient.InMemoryClient) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				statuses, err := rt.Status(ctx)
				if err != nil {
					continue
				}
				for id, status := range statuses {
					if status == runtimeclient.SessionBusy {
						rt.Reply(id, "ok")
					}
				}
			}
		}
	}()
	return func() { close(stop) }
}

func TestEngineRunsUntilCheckpointThenResumes(t *testing.T) {
	def, err := ParseDefinition([]byte(sampleDefinition))
	require.NoError(t, err)

	store, err := ledger.Open(t.TempDir(), 5)
	require.NoError(t, err)

	rt := runtimeclient.NewInMemoryClient()
	var yielded bool
	engine := NewEngine(def, rt, store, WithCheckpointNotifier(func(*State) { yielded = true }))

	ctx := context.Background()
	stopReplier := autoReplier(ctx, rt)
	defer stopReplier()

	state, err := engine.Start(ctx, "acme-corp")
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, state.Status)
	assert.True(t, yielded)
	assert.Contains(t, state.Results, "phase1_step1")

	resumed, err := engine.Resume(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resumed.Status)
}

func TestLoadStateRoundTrip(t *testing.T) {
	store, err := ledger.Open(t.TempDir(), 5)
	require.NoError(t, err)

	none, err := LoadState(store)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, store.SetActiveWorkflow(map[string]any{
		"definitionName": "onboard-user",
		"task":           "acme",
		"status":         "paused",
		"results":        map[string]any{"phase1_step1": "ok"},
	}))

	loaded, err := LoadState(store)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, StatusPaused, loaded.Status)
	assert.Equal(t, "ok", loaded.Results["phase1_step1"])
}
