package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/ralph/internal/models"
)

func sampleState(id string, at time.Time) models.RunState {
	return models.RunState{
		RunID:              "ralph-1700000000-abcd1234",
		WorkItemID:         id,
		SessionToken:       "sess-1",
		Iteration:          3,
		LastScore:          71.5,
		CreatedIssueIDs:    []string{"101", "102"},
		StartTime:          at.Add(-time.Hour),
		LastCheckpointTime: at,
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state"))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := sampleState("42", now)

	require.NoError(t, store.Save(state))

	loaded, err := store.Load("42")
	require.NoError(t, err)
	assert.Equal(t, state.RunID, loaded.RunID)
	assert.Equal(t, 3, loaded.Iteration)
	assert.Equal(t, 71.5, loaded.LastScore)
	assert.Equal(t, []string{"101", "102"}, loaded.CreatedIssueIDs)
	assert.True(t, state.LastCheckpointTime.Equal(loaded.LastCheckpointTime))
	assert.FileExists(t, filepath.Join(store.Dir(), "issue-42.json"))
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())
	now := time.Now()

	first := sampleState("7", now)
	require.NoError(t, store.Save(first))

	second := first
	second.Iteration = 4
	second.CreatedIssueIDs = append(second.CreatedIssueIDs, "103")
	require.NoError(t, store.Save(second))

	loaded, err := store.Load("7")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Iteration)
	assert.Len(t, loaded.CreatedIssueIDs, 3)
}

func TestStore_WritesEmptyIssueList(t *testing.T) {
	store := NewStore(t.TempDir())
	state := sampleState("9", time.Now())
	state.CreatedIssueIDs = nil
	require.NoError(t, store.Save(state))

	data, err := os.ReadFile(store.Path("9"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"createdIssueIds": []`)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load("404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCheckpoint))
}

func TestStore_LoadCorrupt(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.Path("5"), []byte("{not json"), 0644))

	_, err := store.Load("5")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoCheckpoint))
}

func TestStore_SaveRejectsEmptyID(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.Error(t, store.Save(models.RunState{}))
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(sampleState("1", base)))
	require.NoError(t, store.Save(sampleState("2", base.Add(time.Minute))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "issue-3.json"), []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	states, err := store.List()
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "2", states[0].WorkItemID)
	assert.Equal(t, "1", states[1].WorkItemID)
}

func TestStore_ListMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"))
	states, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(sampleState("8", time.Now())))

	require.NoError(t, store.Delete("8"))
	require.NoError(t, store.Delete("8"))

	_, err := store.Load("8")
	assert.True(t, errors.Is(err, ErrNoCheckpoint))
}
