package model

import "fmt"

// ActivityStatus is the field status reported for an activity.
type ActivityStatus string

const (
	StatusNotStarted ActivityStatus = "not_started"
	StatusInProgress ActivityStatus = "in_progress"
	StatusBlocked    ActivityStatus = "blocked"
	StatusCompleted  ActivityStatus = "completed"
)

var validStatuses = []ActivityStatus{StatusNotStarted, StatusInProgress, StatusBlocked, StatusCompleted}

func ValidateStatus(s ActivityStatus) error {
	for _, v := range validStatuses {
		if s == v {
			return nil
		}
	}
	return fmt.Errorf("invalid status %q: must be one of not_started, in_progress, blocked, completed", s)
}

// RecordStatus tracks a cached record through its local -> queued -> synced lifecycle.
type RecordStatus string

const (
	RecordPending RecordStatus = "PENDING"
	RecordSynced  RecordStatus = "SYNCED"
)

// SyncStatus is the process-wide sync state shown to the user. It is never persisted.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "IDLE"
	SyncSyncing SyncStatus = "SYNCING"
	SyncError   SyncStatus = "ERROR"
)

func ValidateProgress(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("invalid progress %d: must be between 0 and 100", p)
	}
	return nil
}
