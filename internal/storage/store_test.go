package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGet(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get("audio.input")
	require.NoError(t, err)
	assert.False(t, ok, "missing key should not be found")

	require.NoError(t, s.Set("audio.input", "mic-1"))
	require.NoError(t, s.Set("audio.input", "mic-2"))

	v, ok, err := s.Get("audio.input")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "mic-2", v, "second Set should overwrite")
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set("audio.output", "speaker-7"))
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get("audio.output")
	require.NoError(t, err)
	require.True(t, ok, "value should survive reopen")
	assert.Equal(t, "speaker-7", v)
}
