package bridge

import (
	"context"
	"testing"

	"github.com/kadirpekel/agentcore/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeEmitsLedgerEvents(t *testing.T) {
	s := stream.New(t.TempDir(), stream.Config{MaxHistorySize: 100}, nil)
	b := New(s)

	_, err := b.Initialize(context.Background())
	require.NoError(t, err)

	_, err = b.EpicCreated("abc123", "Ship it")
	require.NoError(t, err)

	_, err = b.TaskCreated("abc123", "abc123.1", "executor")
	require.NoError(t, err)

	history := s.GetEventHistory(stream.WildcardEventType, 10)
	require.Len(t, history, 2)
	assert.Equal(t, stream.EventTaskCreated, history[0].Type)
	assert.Equal(t, stream.EventEpicCreated, history[1].Type)
}
