package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	c := &Config{}
	c.SetDefaults()

	assert.Equal(t, ".opencode", c.RootDir)
	assert.EqualValues(t, 30000, c.Supervisor.BaseIntervalMs)
	assert.EqualValues(t, 120000, c.Supervisor.MaxIntervalMs)
	assert.Equal(t, 10, c.Stream.MaxStreamSizeMb)
	assert.Equal(t, 1000, c.Stream.MaxHistorySize)
	assert.Equal(t, 3, c.Ledger.MaxTasksPerEpic)
	assert.Equal(t, 5, c.Ledger.ArchiveCap)
	assert.Equal(t, 0.6, c.Learning.MinConfidence)
	assert.Equal(t, 10, c.Learning.MaxLearnings)
	assert.ElementsMatch(t, DefaultProtectedAgents, c.Access.ProtectedAgents)
}

func TestValidate(t *testing.T) {
	c := &Config{}
	c.SetDefaults()
	require.NoError(t, c.Validate())

	c.Supervisor.MaxIntervalMs = c.Supervisor.BaseIntervalMs - 1
	require.Error(t, c.Validate())
}
