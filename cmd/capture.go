package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rogersnm/fieldsync/internal/capture"
	"github.com/rogersnm/fieldsync/internal/editor"
	"github.com/rogersnm/fieldsync/internal/id"
	"github.com/rogersnm/fieldsync/internal/markdown"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture [note]",
	Short: "Record a daily log with photos; it is kept locally until delivered",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		edit, _ := cmd.Flags().GetBool("edit")

		var (
			in  capture.Input
			err error
		)
		switch {
		case file != "":
			in, err = inputFromFile(cmd, file)
		case edit:
			in, err = inputFromEditor(cmd)
		default:
			in, err = inputFromFlags(cmd, args)
		}
		if err != nil {
			return err
		}
		if in.ProjectID == "" {
			if in.ProjectID, err = resolveProject(cmd); err != nil {
				return err
			}
		}
		if in.ActivityID == "" {
			if in.ActivityID, err = selectActivity(cmd, in.ProjectID); err != nil {
				return err
			}
		}

		log, err := a.capture.Submit(cmd.Context(), in)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Saved daily log %s with %d photo(s)\n", id.Short(log.ID), len(log.PhotoIDs))
		if !a.monitor.Online() {
			fmt.Fprintln(out, "Offline: the report is queued and will sync when you reconnect.")
		}
		return nil
	},
}

func inputFromFlags(cmd *cobra.Command, args []string) (capture.Input, error) {
	project, _ := cmd.Flags().GetString("project")
	activityID, _ := cmd.Flags().GetString("activity")
	status, _ := cmd.Flags().GetString("status")
	date, _ := cmd.Flags().GetString("date")
	photos, _ := cmd.Flags().GetStringSlice("photo")

	note := strings.Join(args, " ")
	if note == "" {
		note = readStdin()
	}
	in := capture.Input{
		ProjectID:  project,
		ActivityID: activityID,
		Note:       strings.TrimSpace(note),
		Status:     model.ActivityStatus(status),
	}
	if cmd.Flags().Changed("progress") {
		p, _ := cmd.Flags().GetInt("progress")
		in.Progress = &p
	}
	if date != "" {
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return capture.Input{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", date)
		}
		in.Date = &t
	}
	for _, p := range photos {
		data, err := os.ReadFile(p)
		if err != nil {
			return capture.Input{}, fmt.Errorf("reading photo: %w", err)
		}
		in.Photos = append(in.Photos, data)
	}
	return in, nil
}

func inputFromFile(cmd *cobra.Command, path string) (capture.Input, error) {
	var (
		r       io.Reader
		baseDir string
	)
	if path == "-" {
		r = cmd.InOrStdin()
		baseDir, _ = os.Getwd()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return capture.Input{}, fmt.Errorf("opening report: %w", err)
		}
		defer f.Close()
		r = f
		baseDir = filepath.Dir(path)
	}
	draft, err := capture.ParseMarkdown(r)
	if err != nil {
		return capture.Input{}, err
	}
	return draft.Input(baseDir)
}

func inputFromEditor(cmd *cobra.Command) (capture.Input, error) {
	fm := capture.Frontmatter{Date: time.Now().Format("2006-01-02")}
	fm.Project, _ = cmd.Flags().GetString("project")
	if fm.Project == "" {
		fm.Project, _ = resolveProject(cmd)
	}
	fm.Activity, _ = cmd.Flags().GetString("activity")
	fm.Status, _ = cmd.Flags().GetString("status")
	fm.Photos, _ = cmd.Flags().GetStringSlice("photo")

	tmpl, err := capture.Template(fm)
	if err != nil {
		return capture.Input{}, err
	}
	data, kept, err := editor.Edit(dataDir, tmpl)
	if err != nil {
		if kept != "" {
			return capture.Input{}, fmt.Errorf("%w (draft kept at %s)", err, kept)
		}
		return capture.Input{}, err
	}
	draft, err := capture.ParseMarkdown(bytes.NewReader(data))
	if err != nil {
		return capture.Input{}, err
	}
	cwd, _ := os.Getwd()
	return draft.Input(cwd)
}

// selectActivity prompts with the cached schedule when no activity was given.
func selectActivity(cmd *cobra.Command, projectID string) (string, error) {
	acts, err := a.activity.List(cmd.Context(), projectID)
	if err != nil {
		return "", err
	}
	if len(acts) == 0 {
		return "", errors.New("--activity is required (no activities cached; run: fieldsync activity refresh)")
	}
	opts := make([]huh.Option[string], len(acts))
	for i, act := range acts {
		opts[i] = huh.NewOption(fmt.Sprintf("%s  %s", id.Short(act.ID), act.Name), act.ID)
	}
	var activityID string
	if err := huh.NewSelect[string]().
		Title("Select an activity").
		Options(opts...).
		Value(&activityID).
		Run(); err != nil {
		return "", fmt.Errorf("selection cancelled")
	}
	return activityID, nil
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <activity-id>",
	Short: "Show an activity's daily logs, including reports still queued",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := a.capture.Timeline(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, markdown.RenderTimeline(entries))

		if notes, _ := cmd.Flags().GetBool("notes"); notes {
			for _, e := range entries {
				if e.Item.Note == "" {
					continue
				}
				fields := []string{markdown.RenderField("Sync", markdown.RenderRecordStatus(e.Item.SyncStatus))}
				if e.Item.Status != "" {
					fields = append(fields, markdown.RenderField("Status", markdown.RenderStatus(e.Item.Status)))
				}
				fmt.Fprint(out, markdown.RenderEntityHeader(e.Item.SortTime().Format("2006-01-02 15:04")+"  "+id.Short(e.Item.ID), fields))
				rendered, err := markdown.RenderMarkdown(e.Item.Note)
				if err != nil {
					return err
				}
				fmt.Fprint(out, rendered)
			}
		}
		return nil
	},
}

func init() {
	captureCmd.Flags().StringP("project", "p", "", "project id")
	captureCmd.Flags().StringP("activity", "a", "", "activity id")
	captureCmd.Flags().StringP("status", "s", "", "activity status (not_started, in_progress, blocked, completed)")
	captureCmd.Flags().Int("progress", 0, "activity progress, 0-100")
	captureCmd.Flags().String("date", "", "report date (YYYY-MM-DD), defaults to now")
	captureCmd.Flags().StringSlice("photo", nil, "photo file to attach (repeatable)")
	captureCmd.Flags().StringP("file", "f", "", "submit a report file with YAML frontmatter (- for stdin)")
	captureCmd.Flags().BoolP("edit", "e", false, "write the report in $EDITOR")

	timelineCmd.Flags().Bool("notes", false, "print each report's full note below the table")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(timelineCmd)
}
