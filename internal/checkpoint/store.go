// Package checkpoint persists run progress snapshots for crash recovery.
package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/ralph/internal/filelock"
	"github.com/harrison/ralph/internal/models"
)

// ErrNoCheckpoint is returned by Load when no snapshot exists for the issue.
var ErrNoCheckpoint = errors.New("no checkpoint")

const filePrefix = "issue-"

// Store reads and writes one snapshot file per work item under dir:
// {dir}/issue-{id}.json. Each Save overwrites the previous snapshot.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on first
// Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the snapshot file for workItemID.
func (s *Store) Path(workItemID string) string {
	return filepath.Join(s.dir, filePrefix+workItemID+".json")
}

// Save atomically replaces the snapshot for state.WorkItemID.
func (s *Store) Save(state models.RunState) error {
	if state.WorkItemID == "" {
		return fmt.Errorf("checkpoint: empty work item id")
	}
	if state.CreatedIssueIDs == nil {
		state.CreatedIssueIDs = []string{}
	}
	if err := filelock.WriteJSON(s.Path(state.WorkItemID), state); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the snapshot for workItemID, or ErrNoCheckpoint.
func (s *Store) Load(workItemID string) (*models.RunState, error) {
	var state models.RunState
	if err := filelock.ReadJSON(s.Path(workItemID), &state); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for issue %s", ErrNoCheckpoint, workItemID)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return &state, nil
}

// List returns every readable snapshot, most recently written first.
// Corrupt files are skipped.
func (s *Store) List() ([]models.RunState, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.RunState{}, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	states := []models.RunState{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		var state models.RunState
		if err := filelock.ReadJSON(filepath.Join(s.dir, name), &state); err != nil {
			continue
		}
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].LastCheckpointTime.After(states[j].LastCheckpointTime)
	})
	return states, nil
}

// Delete removes the snapshot for workItemID. A missing snapshot is not an
// error.
func (s *Store) Delete(workItemID string) error {
	if err := os.Remove(s.Path(workItemID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	os.Remove(s.Path(workItemID) + ".lock")
	return nil
}
