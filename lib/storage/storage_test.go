package storage

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openMemory(t *testing.T) *Storage {
	t.Helper()
	s, err := Open(Options{InMemory: true, Key: []byte("test-key"), Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGet(t *testing.T) {
	s := openMemory(t)

	require.NoError(t, s.Set("count", int64(3)))
	require.NoError(t, s.Set("user", map[string]any{"name": "Ada"}))

	v, err := s.Get("count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = s.Get("user")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada"}, v)

	v, err = s.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestItems(t *testing.T) {
	s := openMemory(t)

	require.NoError(t, s.SetItem(Item{Key: "token", Value: "secret", Sensitive: true}))

	item, err := s.GetItem("token")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, Item{Key: "token", Value: "secret", Sensitive: true}, *item)

	item, err = s.GetItem("nope")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestDeleteAndKeys(t *testing.T) {
	s := openMemory(t)

	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "1"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"))

	keys, err = s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Path: dir, Key: []byte("k"), Logger: quietLogger()}

	s, err := Open(opts)
	require.NoError(t, err)
	require.NoError(t, s.Set("theme", "dark"))
	require.NoError(t, s.Close())

	s, err = Open(opts)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)
}

func TestWrongKeyFails(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Path: dir, Key: []byte("one"), Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, s.Set("theme", "dark"))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir, Key: []byte("two"), Logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("theme")
	assert.Error(t, err)
}

func TestClosed(t *testing.T) {
	s, err := Open(Options{InMemory: true, Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Set("a", 1), ErrClosed)
	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}
