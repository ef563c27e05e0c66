package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/ralph/internal/filelock"
	"github.com/harrison/ralph/internal/models"
)

// DefaultAuditMaxBytes is the size at which the audit log is rotated.
const DefaultAuditMaxBytes int64 = 10 * 1024 * 1024

// AuditLog appends one JSON line per provider call. Appends are serialized
// across processes with a file lock; a file that reached MaxBytes is
// renamed to "<path>.<unix>" before the next append.
type AuditLog struct {
	path     string
	maxBytes int64
	now      func() time.Time
}

// NewAuditLog creates the audit log at path. maxBytes <= 0 selects
// DefaultAuditMaxBytes.
func NewAuditLog(path string, maxBytes int64) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultAuditMaxBytes
	}
	return &AuditLog{path: path, maxBytes: maxBytes, now: time.Now}, nil
}

// Path returns the audit file location.
func (a *AuditLog) Path() string {
	return a.path
}

// Record appends rec, stamping it with the current time when unset.
func (a *AuditLog) Record(rec models.AuditRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = a.now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	return filelock.AppendRotating(a.path, append(data, '\n'), a.maxBytes)
}
