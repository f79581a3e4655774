package markdown

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
	"github.com/rogersnm/fieldsync/internal/reconcile"
)

var (
	headerRowStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle      = lipgloss.NewStyle()
)

const noteWidth = 48

func RenderProjectTable(projects []model.Project, defaultID string) string {
	if len(projects) == 0 {
		return "No projects found."
	}
	rows := make([][]string, len(projects))
	for i, p := range projects {
		mark := ""
		if p.ID == defaultID {
			mark = "*"
		}
		rows[i] = []string{mark, p.ID, p.Name, p.Code}
	}
	return renderTable([]string{"", "ID", "Name", "Code"}, rows)
}

func RenderActivityTable(activities []model.Activity) string {
	if len(activities) == 0 {
		return "No activities found."
	}
	rows := make([][]string, len(activities))
	for i, a := range activities {
		rows[i] = []string{
			a.ID, a.Name, RenderStatus(a.Status), strconv.Itoa(a.Progress) + "%", RenderRecordStatus(a.SyncStatus),
		}
	}
	return renderTable([]string{"ID", "Name", "Status", "Progress", "Sync"}, rows)
}

// RenderTimeline renders a reconciled daily log history, newest first.
func RenderTimeline(entries []reconcile.Entry[model.DailyLog]) string {
	if len(entries) == 0 {
		return "No daily logs yet."
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		d := e.Item
		sync := RenderRecordStatus(d.SyncStatus)
		if e.IsPending {
			sync = activeStyle.Render("queued")
		}
		progress := ""
		if d.Progress != nil {
			progress = strconv.Itoa(*d.Progress) + "%"
		}
		when := d.CreatedAt.Local().Format("2006-01-02 15:04")
		if d.Date != nil && !d.Date.IsZero() {
			when = d.Date.Format("2006-01-02")
		}
		rows[i] = []string{
			when,
			truncate(d.Note, noteWidth),
			string(d.Status),
			progress,
			strconv.Itoa(len(d.PhotoIDs)),
			sync,
		}
	}
	return renderTable([]string{"Date", "Note", "Status", "Progress", "Photos", "Sync"}, rows)
}

func RenderCaptureQueueTable(items []queue.ItemStatus) string {
	if len(items) == 0 {
		return "Capture queue is empty."
	}
	rows := make([][]string, len(items))
	for i, it := range items {
		state := activeStyle.Render("waiting")
		if it.Rejected {
			state = problemStyle.Render("rejected")
		} else if it.LastError != "" {
			state = problemStyle.Render("retrying")
		}
		rows[i] = []string{
			it.LocalID,
			it.EntityRef,
			fmt.Sprintf("%d/%d", it.AssetsUploaded, it.Assets),
			strconv.Itoa(it.Retries),
			state,
			truncate(it.LastError, noteWidth),
		}
	}
	return renderTable([]string{"ID", "Target", "Photos", "Retries", "State", "Last error"}, rows)
}

func RenderCommandTable(cmds []queue.Command) string {
	if len(cmds) == 0 {
		return "Command queue is empty."
	}
	rows := make([][]string, len(cmds))
	for i, c := range cmds {
		state := activeStyle.Render("waiting")
		if c.Rejected {
			state = problemStyle.Render("rejected")
		} else if c.LastError != "" {
			state = problemStyle.Render("retrying")
		}
		rows[i] = []string{c.ID, c.Method, c.URL, c.EnqueuedAt.Local().Format("2006-01-02 15:04"), state}
	}
	return renderTable([]string{"ID", "Method", "URL", "Queued", "State"}, rows)
}

func RenderIssueTable(issues []model.Issue) string {
	if len(issues) == 0 {
		return "No issues found."
	}
	rows := make([][]string, len(issues))
	for i, is := range issues {
		status := problemStyle.Render(string(is.Status))
		if is.Status == model.IssueResolved {
			status = doneStyle.Render(string(is.Status))
		}
		rows[i] = []string{is.ID, truncate(is.Title, noteWidth), status, RenderRecordStatus(is.SyncStatus)}
	}
	return renderTable([]string{"ID", "Title", "Status", "Sync"}, rows)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Headers(headers...).
		Rows(rows...).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerRowStyle
			}
			return cellStyle
		})
	return t.Render()
}
