package model

import (
	"fmt"
	"time"
)

// Activity is a schedule line item that field reports are written against.
type Activity struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"projectId"`
	Name       string         `json:"name"`
	Status     ActivityStatus `json:"status"`
	Progress   int            `json:"progress"`
	StartDate  *time.Time     `json:"startDate,omitempty"`
	EndDate    *time.Time     `json:"endDate,omitempty"`
	SyncStatus RecordStatus   `json:"syncStatus"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (a Activity) RecordKey() string { return a.ID }

func (a *Activity) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("activity id is required")
	}
	if a.ProjectID == "" {
		return fmt.Errorf("activity project is required")
	}
	if a.Name == "" {
		return fmt.Errorf("activity name is required")
	}
	if err := ValidateStatus(a.Status); err != nil {
		return err
	}
	return ValidateProgress(a.Progress)
}
