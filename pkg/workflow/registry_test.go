package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionRegistryLoadDirAndFindByTrigger(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "onboard.md"), []byte(sampleDefinition), 0o644))

	reg := NewDefinitionRegistry()
	require.NoError(t, reg.LoadDir(dir))

	def, ok := reg.Get("onboard-user")
	require.True(t, ok)
	assert.Equal(t, "planner", def.EntryAgent)

	matches := reg.FindByTrigger("user.signup")
	require.Len(t, matches, 1)
	assert.Equal(t, "onboard-user", matches[0].Name)

	assert.Empty(t, reg.FindByTrigger("no.such.trigger"))
}

func TestDefinitionRegistryRejectsDuplicateName(t *testing.T) {
	def, err := ParseDefinition([]byte(sampleDefinition))
	require.NoError(t, err)

	reg := NewDefinitionRegistry()
	require.NoError(t, reg.Add(def))
	assert.Error(t, reg.Add(def))
}
