package models

import "time"

// RunState is the crash-recovery snapshot written after every iteration.
type RunState struct {
	RunID              string    `json:"runId"`
	WorkItemID         string    `json:"workItemId"`
	SessionToken       string    `json:"sessionToken,omitempty"`
	Iteration          int       `json:"iteration"`
	LastScore          float64   `json:"lastScore"`
	CreatedIssueIDs    []string  `json:"createdIssueIds"`
	StartTime          time.Time `json:"startTime"`
	LastCheckpointTime time.Time `json:"lastCheckpointTime"`
}

// MetricsReport is the structured summary written once at run end.
type MetricsReport struct {
	RunID            string    `json:"runId"`
	WorkItemID       string    `json:"workItemId"`
	StartTime        time.Time `json:"startTime"`
	DurationMs       int64     `json:"duration"` // milliseconds
	Iterations       int       `json:"iterations"`
	APICalls         int       `json:"apiCalls"`
	IssuesCreated    int       `json:"issuesCreated"`
	AutoFixesApplied int       `json:"autoFixesApplied"`
	FilesModified    []string  `json:"filesModified"`
}

// AuditRecord is one line of the provider-call audit log.
type AuditRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"runId"`
	Gate       string    `json:"gate"`
	Provider   string    `json:"provider"`
	Outcome    string    `json:"outcome"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
}
