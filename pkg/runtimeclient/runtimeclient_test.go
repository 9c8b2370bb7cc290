package runtimeclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePromptReply(t *testing.T) {
	c := NewInMemoryClient()
	ctx := context.Background()

	id, err := c.CreateSession(ctx, "", "t")
	require.NoError(t, err)

	require.NoError(t, c.Prompt(ctx, id, "executor", "do the thing"))

	statuses, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, SessionBusy, statuses[id])

	c.Reply(id, "done")
	statuses, _ = c.Status(ctx)
	assert.Equal(t, SessionIdle, statuses[id])

	msgs, err := c.Messages(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "done", LatestAssistantText(msgs))
}

func TestLatestAssistantTextIgnoresUser(t *testing.T) {
	msgs := []Message{
		{Role: "assistant", CreatedAt: 1, Parts: []Part{{Type: "text", Text: "old"}}},
		{Role: "user", CreatedAt: 2, Parts: []Part{{Type: "text", Text: "ignored"}}},
		{Role: "assistant", CreatedAt: 3, Parts: []Part{{Type: "text", Text: "new"}}},
	}
	assert.Equal(t, "new", LatestAssistantText(msgs))
}
