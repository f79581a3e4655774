package markdown

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rogersnm/fieldsync/internal/model"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	plainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	problemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(content)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return out, nil
}

func StatusStyle(status model.ActivityStatus) lipgloss.Style {
	switch status {
	case model.StatusCompleted:
		return doneStyle
	case model.StatusInProgress:
		return activeStyle
	case model.StatusBlocked:
		return problemStyle
	default:
		return plainStyle
	}
}

func RenderStatus(status model.ActivityStatus) string {
	return StatusStyle(status).Render(string(status))
}

// RenderRecordStatus marks records the server has not confirmed yet.
func RenderRecordStatus(s model.RecordStatus) string {
	if s == model.RecordPending {
		return activeStyle.Render("pending")
	}
	return doneStyle.Render("synced")
}

func RenderSyncStatus(s model.SyncStatus) string {
	switch s {
	case model.SyncSyncing:
		return activeStyle.Render(string(s))
	case model.SyncError:
		return problemStyle.Render(string(s))
	default:
		return doneStyle.Render(string(s))
	}
}

func RenderConnectivity(online bool) string {
	if online {
		return doneStyle.Render("online")
	}
	return problemStyle.Render("offline")
}

func RenderField(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

func RenderEntityHeader(title string, fields []string) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n")
	for _, f := range fields {
		sb.WriteString("  " + f + "\n")
	}
	return sb.String()
}
