package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "state.json")),
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			done, err := s.IsComplete("network")
			require.NoError(t, err)
			assert.False(t, done)

			require.NoError(t, s.MarkComplete("network", "healthy"))
			done, err = s.IsComplete("network")
			require.NoError(t, err)
			assert.True(t, done)

			rec, ok, err := s.Get("network")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "network", rec.Name)
			assert.Equal(t, "healthy", rec.Health)
			assert.False(t, rec.Timestamp.IsZero())

			require.NoError(t, s.Reset("network"))
			done, err = s.IsComplete("network")
			require.NoError(t, err)
			assert.False(t, done)
			_, ok, err = s.Get("network")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFailedAttemptLeavesRecordButNotComplete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.MarkFailed("kubernetes", "timed-out"))

			done, err := s.IsComplete("kubernetes")
			require.NoError(t, err)
			assert.False(t, done)

			rec, ok, err := s.Get("kubernetes")
			require.NoError(t, err)
			require.True(t, ok)
			assert.False(t, rec.Complete)
			assert.Equal(t, "timed-out", rec.Health)
		})
	}
}

func TestAllSorted(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.MarkComplete("firewall", "healthy"))
			require.NoError(t, s.MarkComplete("calico", "degraded"))
			require.NoError(t, s.MarkFailed("network", "timed-out"))

			all, err := s.All()
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"calico", "firewall", "network"},
				[]string{all[0].Name, all[1].Name, all[2].Name})
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)
	require.NoError(t, s.MarkComplete("network", "healthy"))

	reopened := NewFileStore(path)
	done, err := reopened.IsComplete("network")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope", "state.json"))
	done, err := s.IsComplete("anything")
	require.NoError(t, err)
	assert.False(t, done)

	all, err := s.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStoreRejectsCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	s := NewFileStore(path)
	_, err := s.IsComplete("network")
	assert.Error(t, err)
}

func TestFileStoreUpdateDoesNotClobberOtherModules(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, s.MarkComplete("network", "healthy"))
	require.NoError(t, s.MarkComplete("firewall", "healthy"))
	require.NoError(t, s.Reset("network"))

	done, err := s.IsComplete("firewall")
	require.NoError(t, err)
	assert.True(t, done)
}
