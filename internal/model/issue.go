package model

import (
	"fmt"
	"time"
)

type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
)

// Issue is a punch-list item raised against an activity.
type Issue struct {
	ID         string       `json:"id"`
	ProjectID  string       `json:"projectId"`
	ActivityID string       `json:"activityId,omitempty"`
	Title      string       `json:"title"`
	Status     IssueStatus  `json:"status"`
	SyncStatus RecordStatus `json:"syncStatus"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func (i Issue) RecordKey() string { return i.ID }

func (i *Issue) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("issue id is required")
	}
	if i.ProjectID == "" {
		return fmt.Errorf("issue project is required")
	}
	if i.Title == "" {
		return fmt.Errorf("issue title is required")
	}
	if i.Status != IssueOpen && i.Status != IssueResolved {
		return fmt.Errorf("invalid issue status %q: must be one of open, resolved", i.Status)
	}
	return nil
}
