package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	mtp "github.com/modeltoolsprotocol/go-sdk"
	"github.com/rogersnm/fieldsync/internal/config"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/sitefile"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	dataDir string
	offline bool
	cfg     *config.Config
	a       *app
)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".fieldsync")
	}
	return filepath.Join(home, ".fieldsync")
}

var rootCmd = &cobra.Command{
	Use:     "fieldsync",
	Short:   "Offline-first field reporting for construction projects",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		var err error
		cfg, err = config.Load(dataDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger.Init(cfg.Logger(version))

		// Auth commands only touch the config file.
		if cmd.Parent() != nil && cmd.Parent().Name() == "auth" {
			return nil
		}

		a, err = newApp(cmd.Context(), cfg, dataDir, !offline)
		return err
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "data directory path")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "queue changes without contacting the server")

	mtpOpts := &mtp.DescribeOptions{
		Commands: map[string]*mtp.CommandAnnotation{
			"capture": {
				Stdin: &mtp.IODescriptor{
					ContentType: "text/markdown",
					Description: "Report note, or a full report with YAML frontmatter when --file - is given",
				},
				Examples: []mtp.Example{
					{Description: "Log progress with photos", Command: "fieldsync capture --activity a1 --progress 60 --photo slab.jpg \"Slab poured on level 2\""},
					{Description: "Write the report in $EDITOR", Command: "fieldsync capture --activity a1 --edit"},
					{Description: "Submit a prepared report file", Command: "fieldsync capture --file report.md"},
				},
			},
			"timeline": {
				Stdout: &mtp.IODescriptor{
					ContentType: "text/plain",
					Description: "Daily logs for an activity, newest first, with queued reports marked",
				},
				Examples: []mtp.Example{
					{Description: "Show an activity's history", Command: "fieldsync timeline a1"},
				},
			},
			"sync": {
				Examples: []mtp.Example{
					{Description: "Deliver everything queued", Command: "fieldsync sync"},
				},
			},
			"status": {
				Stdout: &mtp.IODescriptor{
					ContentType: "text/plain",
					Description: "Connectivity, sync status and queue depths",
				},
			},
			"queue list": {
				Stdout: &mtp.IODescriptor{
					ContentType: "text/plain",
					Description: "Queued reports and commands with retry counts and last errors",
				},
			},
			"queue retry": {
				Examples: []mtp.Example{
					{Description: "Retry a rejected report now", Command: "fieldsync queue retry 3f6c1e2a"},
				},
			},
			"queue discard": {
				Examples: []mtp.Example{
					{Description: "Drop a rejected command (interactive confirm)", Command: "fieldsync queue discard 3f6c1e2a"},
					{Description: "Drop a rejected command (skip confirm)", Command: "fieldsync queue discard 3f6c1e2a --force"},
				},
			},
			"activity set-status": {
				Examples: []mtp.Example{
					{Description: "Mark an activity complete", Command: "fieldsync activity set-status a1 completed --progress 100"},
				},
			},
			"activity list": {
				Stdout: &mtp.IODescriptor{
					ContentType: "text/plain",
					Description: "Cached activities with status, progress and sync state",
				},
			},
			"issue raise": {
				Examples: []mtp.Example{
					{Description: "Raise a punch-list item", Command: "fieldsync issue raise --activity a1 \"Rebar exposed at grid C4\""},
				},
			},
			"project link": {
				Examples: []mtp.Example{
					{Description: "Link the current site folder to a project", Command: "fieldsync project link p-harbour"},
				},
			},
			"daemon": {
				Examples: []mtp.Example{
					{Description: "Run the sync loop and local API", Command: "fieldsync daemon --listen 127.0.0.1:7420"},
				},
			},
		},
	}

	mtp.WithDescribe(rootCmd, mtpOpts)
}

func Execute() error {
	err := rootCmd.Execute()
	if a != nil {
		// Runs even when the command failed, so queued syncs finish.
		err = errors.Join(err, a.Close())
		a = nil
	}
	return err
}

// resolveProject returns the project ID from the flag, a linked site folder, or the global default.
func resolveProject(cmd *cobra.Command) (string, error) {
	p, _ := cmd.Flags().GetString("project")
	if p != "" {
		return p, nil
	}
	if cwd, err := os.Getwd(); err == nil {
		if sp, _, _ := sitefile.Find(cwd); sp != "" {
			return sp, nil
		}
	}
	if cfg != nil && cfg.DefaultProject != "" {
		return cfg.DefaultProject, nil
	}
	return "", fmt.Errorf("--project is required (or set a default with: fieldsync project set-default <id>, or link a folder with: fieldsync project link)")
}

// confirm asks before a destructive action unless --force was given.
func confirm(cmd *cobra.Command, title string) error {
	if force, _ := cmd.Flags().GetBool("force"); force {
		return nil
	}
	var ok bool
	if err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run(); err != nil {
		return fmt.Errorf("confirmation cancelled (use --force to skip)")
	}
	if !ok {
		return fmt.Errorf("aborted")
	}
	return nil
}

func readStdin() string {
	info, err := os.Stdin.Stat()
	if err != nil {
		return ""
	}
	// Only read if stdin is explicitly a pipe (not a terminal, not a socket)
	if info.Mode()&os.ModeNamedPipe == 0 && info.Size() == 0 {
		return ""
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return ""
	}
	return string(data)
}
