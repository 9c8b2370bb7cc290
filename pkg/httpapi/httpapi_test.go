package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kadirpekel/agentcore/pkg/access"
	"github.com/kadirpekel/agentcore/pkg/buffers"
	"github.com/kadirpekel/agentcore/pkg/ledger"
	"github.com/kadirpekel/agentcore/pkg/runtimeclient"
	"github.com/kadirpekel/agentcore/pkg/stream"
	"github.com/kadirpekel/agentcore/pkg/taskregistry"
	"github.com/kadirpekel/agentcore/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := ledger.Open(t.TempDir(), 5)
	require.NoError(t, err)

	st := stream.New(t.TempDir(), stream.Config{MaxHistorySize: 100, MaxCheckpoints: 20}, nil)
	_, err = st.Initialize(t.Context())
	require.NoError(t, err)

	return &Server{
		Ledger:  store,
		Tasks:   taskregistry.New(),
		Stream:  st,
		Signals: buffers.NewSignalBuffer(),
		Prompts: buffers.NewPromptBuffer(),
		Access:  access.New(nil),
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLedgerToolsCreateEpicAndTask(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	rr := postJSON(t, h, "/tools/ledger_create_epic", map[string]string{"title": "ship feature", "request": "do it"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var epic ledger.Epic
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &epic))
	assert.NotEmpty(t, epic.ID)

	rr = postJSON(t, h, "/tools/ledger_create_task", map[string]any{
		"epicId": epic.ID, "title": "first task", "agent": "executor",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = postJSON(t, h, "/tools/ledger_status", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTaskToolsRegisterAndFetch(t *testing.T) {
	s := newTestServer(t)
	id := s.Tasks.Register(taskregistry.Spec{Agent: "executor", Prompt: "do it", SessionID: "sess-1"})

	rr := postJSON(t, s.Router(), "/tools/task_status", map[string]string{"taskId": id})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, s.Router(), "/tools/task_heartbeat", map[string]string{"taskId": id})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, s.Router(), "/tools/task_status", map[string]string{"taskId": "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckpointApproveFlow(t *testing.T) {
	s := newTestServer(t)
	cp, err := s.Stream.RequestCheckpoint("pick-a-plan", []stream.CheckpointOption{{ID: "a", Label: "Plan A"}}, "planner", 60000)
	require.NoError(t, err)

	h := s.Router()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkpoints/", nil)
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = postJSON(t, h, "/checkpoints/"+cp.ID+"/approve", map[string]string{"approvedBy": "chief-of-staff", "selectedOption": "a"})
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Empty(t, s.Stream.GetPendingCheckpoints())
}

const sampleDefinition = `---
name: onboard-user
trigger:
  - user.signup
entry_agent: planner
---

## Phase 1: Confirm
- Agent: validator
  - Prompt: "Confirm the plan"
  - Wait: false
  - Checkpoint: true

## Phase 2: Execute
- Agent: executor
  - Prompt: "Execute the plan"
  - Wait: false
  - Checkpoint: false
`

func TestCheckpointApproveResumesPausedWorkflow(t *testing.T) {
	s := newTestServer(t)
	def, err := workflow.ParseDefinition([]byte(sampleDefinition))
	require.NoError(t, err)

	s.Workflows = workflow.NewDefinitionRegistry()
	require.NoError(t, s.Workflows.Add(def))
	s.Runtime = runtimeclient.NewInMemoryClient()

	var checkpointID string
	s.WorkflowNotifier = func(state *workflow.State) {
		cp, err := s.Stream.RequestCheckpoint("resume test", []stream.CheckpointOption{{ID: "continue", Label: "Continue"}}, state.DefinitionName, 60000)
		require.NoError(t, err)
		checkpointID = cp.ID
		state.CheckpointID = checkpointID
	}

	eng := workflow.NewEngine(def, s.Runtime, s.Ledger, workflow.WithCheckpointNotifier(s.WorkflowNotifier))
	state, err := eng.Start(t.Context(), "acme-corp")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPaused, state.Status)
	require.Equal(t, checkpointID, state.CheckpointID)

	rr := postJSON(t, s.Router(), "/checkpoints/"+checkpointID+"/approve", map[string]string{"approvedBy": "chief-of-staff"})
	assert.Equal(t, http.StatusOK, rr.Code)

	require.Eventually(t, func() bool {
		resumed, err := workflow.LoadState(s.Ledger)
		return err == nil && resumed != nil && resumed.Status == workflow.StatusCompleted
	}, time.Second, 5*time.Millisecond)
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
