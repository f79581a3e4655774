package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rogersnm/fieldsync/internal/model"
)

// --- API response types ---

type apiProject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p apiProject) toModel() model.Project {
	return model.Project{
		ID:        p.ID,
		Name:      p.Name,
		Code:      p.Code,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type apiActivity struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Progress  int        `json:"progress"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (a apiActivity) toModel() model.Activity {
	return model.Activity{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		Name:       a.Name,
		Status:     model.ActivityStatus(a.Status),
		Progress:   a.Progress,
		StartDate:  a.StartDate,
		EndDate:    a.EndDate,
		SyncStatus: model.RecordSynced,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

type apiDailyLog struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	ActivityID string     `json:"activity_id"`
	Note       string     `json:"note"`
	Status     string     `json:"status"`
	Progress   *int       `json:"progress"`
	Date       *time.Time `json:"date"`
	PhotoIDs   []string   `json:"photo_ids"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (d apiDailyLog) toModel() model.DailyLog {
	return model.DailyLog{
		ID:         d.ID,
		RemoteID:   d.ID,
		ProjectID:  d.ProjectID,
		ActivityID: d.ActivityID,
		Note:       d.Note,
		Status:     model.ActivityStatus(d.Status),
		Progress:   d.Progress,
		Date:       d.Date,
		PhotoIDs:   d.PhotoIDs,
		SyncStatus: model.RecordSynced,
		CreatedAt:  d.CreatedAt,
	}
}

// --- Lists ---

func listAll[A any, M any](ctx context.Context, c *Client, path string, toModel func(A) M) ([]M, error) {
	var all []M
	cursor := ""
	for {
		p := path + "?limit=100"
		if cursor != "" {
			p += "&cursor=" + url.QueryEscape(cursor)
		}
		resp, err := c.doJSON(ctx, http.MethodGet, p, nil)
		if err != nil {
			return nil, err
		}
		page, err := decodePagedResponse[A](resp)
		if err != nil {
			return nil, err
		}
		for _, a := range page.data {
			all = append(all, toModel(a))
		}
		if page.nextCursor == "" {
			break
		}
		cursor = page.nextCursor
	}
	return all, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	return listAll(ctx, c, "/projects", apiProject.toModel)
}

func (c *Client) ListActivities(ctx context.Context, projectID string) ([]model.Activity, error) {
	return listAll(ctx, c, "/projects/"+url.PathEscape(projectID)+"/activities", apiActivity.toModel)
}

func (c *Client) ListDailyLogs(ctx context.Context, activityID string) ([]model.DailyLog, error) {
	return listAll(ctx, c, "/activities/"+url.PathEscape(activityID)+"/daily-logs", apiDailyLog.toModel)
}
