package activity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordAppends(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Record(Entry{Kind: "agent.spawned", Actor: "planner"}))
	require.NoError(t, l.Record(Entry{Kind: "agent.completed", Actor: "planner"}))
}
