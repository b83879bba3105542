package model

import "time"

// Phase is the migration state machine position. Transitions are
// operator-triggered and one-directional; a failed transition leaves the
// machine at its pre-transition phase.
type Phase string

const (
	PhaseUpload   Phase = "upload"
	PhasePreview  Phase = "preview"
	PhaseStaged   Phase = "staged"
	PhaseMapped   Phase = "mapped"
	PhaseExecuted Phase = "executed"
)

// MigrationLogEntry is an immutable audit record written after each bulk
// action. Append-only; never mutated or deleted by this subsystem.
type MigrationLogEntry struct {
	Action     string         `json:"action"`
	Collection string         `json:"collection"`
	Count      int            `json:"count"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// RowError records a per-row validation failure during staging. One bad
// row never aborts the batch.
type RowError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// StageResult reports a staging pass.
type StageResult struct {
	Attempted int        `json:"attempted"`
	Imported  int        `json:"imported"`
	Errors    []RowError `json:"errors,omitempty"`
}

// MergeFailure records a repoint failure for one removed id in one
// collection. The failing id is withheld from the delete step.
type MergeFailure struct {
	RemoveID   string `json:"remove_id"`
	Collection string `json:"collection"`
	Reason     string `json:"reason"`
}

// MergeResult reports a reference-repair merge batch.
type MergeResult struct {
	KeepID    string           `json:"keep_id"`
	Merged    []string         `json:"merged"`              // ids fully repointed and deleted
	Failures  []MergeFailure   `json:"failures,omitempty"`  // ids withheld from deletion
	Repointed map[string]int64 `json:"repointed,omitempty"` // collection -> rows repointed
}

// CutoverResult reports the wholesale replacement step.
type CutoverResult struct {
	Success  bool   `json:"success"`
	Deleted  int64  `json:"deleted"`
	Inserted int    `json:"inserted"`
	Message  string `json:"message"`
}
