package activity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rogersnm/fieldsync/internal/id"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/model"
)

var ErrIssueNotFound = errors.New("issue not found")

// RaiseIssue records a punch-list item locally and queues its creation.
func (s *Service) RaiseIssue(ctx context.Context, projectID, activityID, title string) (model.Issue, error) {
	now := s.clock.Now().UTC()
	issue := model.Issue{
		ID:         id.New(),
		ProjectID:  projectID,
		ActivityID: activityID,
		Title:      title,
		Status:     model.IssueOpen,
		SyncStatus: model.RecordPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := issue.Validate(); err != nil {
		return model.Issue{}, err
	}

	body := map[string]any{"id": issue.ID, "title": title}
	if activityID != "" {
		body["activity_id"] = activityID
	}
	endpoint := "/projects/" + url.PathEscape(projectID) + "/issues"
	if _, err := s.commands.Enqueue(ctx, endpoint, http.MethodPost, body); err != nil {
		return model.Issue{}, fmt.Errorf("queueing issue: %w", err)
	}
	if err := s.store.Put(ctx, localstore.TableIssues, issue); err != nil && !localstore.IsUnavailable(err) {
		return model.Issue{}, fmt.Errorf("saving issue: %w", err)
	}
	return issue, nil
}

// ResolveIssue marks an issue resolved and queues the change.
func (s *Service) ResolveIssue(ctx context.Context, issueID string) (model.Issue, error) {
	issue, err := localstore.GetAs[model.Issue](ctx, s.store, localstore.TableIssues, issueID)
	if errors.Is(err, localstore.ErrNotFound) {
		return model.Issue{}, fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
	}
	if err != nil {
		return model.Issue{}, fmt.Errorf("loading issue: %w", err)
	}

	issue.Status = model.IssueResolved
	issue.SyncStatus = model.RecordPending
	issue.UpdatedAt = s.clock.Now().UTC()
	endpoint := "/issues/" + url.PathEscape(issueID)
	if _, err := s.commands.Enqueue(ctx, endpoint, http.MethodPatch, map[string]string{"status": string(model.IssueResolved)}); err != nil {
		return model.Issue{}, fmt.Errorf("queueing issue change: %w", err)
	}
	if err := s.store.Put(ctx, localstore.TableIssues, issue); err != nil {
		return model.Issue{}, fmt.Errorf("saving issue: %w", err)
	}
	return issue, nil
}

// Issues lists the cached issues raised against an activity.
func (s *Service) Issues(ctx context.Context, activityID string) ([]model.Issue, error) {
	issues, err := localstore.ListByIndex[model.Issue](ctx, s.store, localstore.TableIssues, localstore.IndexByActivity, activityID)
	if localstore.IsUnavailable(err) {
		return nil, nil
	}
	return issues, err
}
