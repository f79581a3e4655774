package model

import (
	"fmt"
	"time"
)

// DailyLog is one field report: a note, a status and progress snapshot, and
// the ids of the photos captured with it.
type DailyLog struct {
	ID         string         `json:"id"`
	RemoteID   string         `json:"remoteId,omitempty"`
	ProjectID  string         `json:"projectId"`
	ActivityID string         `json:"activityId"`
	Note       string         `json:"note"`
	Status     ActivityStatus `json:"status,omitempty"`
	Progress   *int           `json:"progress,omitempty"`
	Date       *time.Time     `json:"date,omitempty"`
	PhotoIDs   []string       `json:"photoIds,omitempty"`
	SyncStatus RecordStatus   `json:"syncStatus"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (d DailyLog) RecordKey() string { return d.ID }

// ItemID identifies the log across the remote and cached views. Once the
// server has confirmed a log its server id is the identity.
func (d DailyLog) ItemID() string {
	if d.RemoteID != "" {
		return d.RemoteID
	}
	return d.ID
}

// SortTime is the explicit report date when set, else the creation time.
func (d DailyLog) SortTime() time.Time {
	if d.Date != nil && !d.Date.IsZero() {
		return *d.Date
	}
	return d.CreatedAt
}

func (d *DailyLog) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("daily log id is required")
	}
	if d.ProjectID == "" {
		return fmt.Errorf("daily log project is required")
	}
	if d.ActivityID == "" {
		return fmt.Errorf("daily log activity is required")
	}
	if d.Status != "" {
		if err := ValidateStatus(d.Status); err != nil {
			return err
		}
	}
	if d.Progress != nil {
		if err := ValidateProgress(*d.Progress); err != nil {
			return err
		}
	}
	return nil
}
