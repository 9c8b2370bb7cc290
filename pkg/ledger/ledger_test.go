package ledger

import (
	"regexp"
	"testing"

	"github.com/kadirpekel/agentcore/pkg/orcherr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpicLifecycleHappyPath(t *testing.T) {
	store, err := Open(t.TempDir(), defaultArchiveCap)
	require.NoError(t, err)

	epic, err := store.CreateEpic("Ship the widget", "build a widget")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-f0-9]{6}$`), epic.ID)

	t1, err := store.CreateTask(epic.ID, "design", "planner", nil)
	require.NoError(t, err)
	assert.Equal(t, epic.ID+".1", t1.ID)

	t2, err := store.CreateTask(epic.ID, "implement", "executor", []string{t1.ID})
	require.NoError(t, err)

	_, err = store.CreateTask(epic.ID, "validate", "validator", []string{t2.ID})
	require.NoError(t, err)

	_, err = store.CreateTask(epic.ID, "one too many", "executor", nil)
	require.Error(t, err)
	assert.True(t, orcherr.Is(err, orcherr.KindStateViolation))

	_, err = store.UpdateTaskStatus(epic.ID, t1.ID, TaskCompleted, "done", "")
	require.NoError(t, err)

	idx, err := store.Index()
	require.NoError(t, err)
	assert.Equal(t, "1/3", idx.Meta.TasksCompleted)
}

func TestCreateTaskRejectsUnknownDependency(t *testing.T) {
	store, err := Open(t.TempDir(), defaultArchiveCap)
	require.NoError(t, err)

	epic, err := store.CreateEpic("Epic", "request")
	require.NoError(t, err)

	_, err = store.CreateTask(epic.ID, "t", "executor", []string{"does-not-exist"})
	require.Error(t, err)
}

func TestOnlyOneActiveEpic(t *testing.T) {
	store, err := Open(t.TempDir(), defaultArchiveCap)
	require.NoError(t, err)

	_, err = store.CreateEpic("First", "request one")
	require.NoError(t, err)

	_, err = store.CreateEpic("Second", "request two")
	require.Error(t, err)
}

func TestArchiveEpicDerivesOutcomeAndCapsRing(t *testing.T) {
	store, err := Open(t.TempDir(), defaultArchiveCap)
	require.NoError(t, err)

	for i := 0; i < defaultArchiveCap+2; i++ {
		epic, err := store.CreateEpic("Epic", "request")
		require.NoError(t, err)

		task, err := store.CreateTask(epic.ID, "only task", "executor", nil)
		require.NoError(t, err)
		_, err = store.UpdateTaskStatus(epic.ID, task.ID, TaskCompleted, "ok", "")
		require.NoError(t, err)

		archived, err := store.ArchiveEpic(nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSucceeded, archived.Outcome)
	}

	idx, err := store.Index()
	require.NoError(t, err)
	assert.Len(t, idx.Archive, defaultArchiveCap)
	assert.Equal(t, "", idx.ActiveEpicRef)
}

func TestIndexRenderParseRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir(), defaultArchiveCap)
	require.NoError(t, err)

	epic, err := store.CreateEpic("Epic", "request")
	require.NoError(t, err)
	_, err = store.CreateTask(epic.ID, "t", "executor", nil)
	require.NoError(t, err)
	_, err = store.AddLearning(LearningPattern, "retry on 429", nil, 0.8, "evt-1")
	require.NoError(t, err)

	before, err := store.Index()
	require.NoError(t, err)

	rendered, err := renderIndex(before)
	require.NoError(t, err)
	after, err := parseIndex(rendered)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestPlanMarkerUpdateLeavesOtherLinesIntact(t *testing.T) {
	plan := "# Plan: x\n\n- [ ] Task e1.1: first\n- [ ] Task e1.2: second\n"
	updated := updateTaskMarker(plan, "e1.1", TaskCompleted)
	assert.Contains(t, updated, "- [x] Task e1.1: first")
	assert.Contains(t, updated, "- [ ] Task e1.2: second")
}
