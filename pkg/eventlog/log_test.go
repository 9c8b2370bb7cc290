package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.jsonl")

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append([]byte(`{"a":1}`), false)
	require.NoError(t, err)
	_, err = l.Append([]byte(`{"a":2}`), false)
	require.NoError(t, err)

	lines, err := ReadAllFile(path)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, `{"a":1}`, string(lines[0]))
}

func TestRotateOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.jsonl")

	l, err := Open(path, WithMaxBytes(10))
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append([]byte("0123456789"), false)
	require.NoError(t, err)

	rotated, err := l.Append([]byte("next"), false)
	require.NoError(t, err)
	assert.True(t, rotated)

	lines, err := ReadAllFile(path)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, "next", string(lines[0]))
}
