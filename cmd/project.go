package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/rogersnm/fieldsync/internal/config"
	"github.com/rogersnm/fieldsync/internal/markdown"
	"github.com/rogersnm/fieldsync/internal/sitefile"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := a.activity.Projects(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), markdown.RenderProjectTable(projects, cfg.DefaultProject))
		return nil
	},
}

var projectRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the project list from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := a.activity.RefreshProjects(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), markdown.RenderProjectTable(projects, cfg.DefaultProject))
		return nil
	},
}

var projectSetDefaultCmd = &cobra.Command{
	Use:   "set-default <id>",
	Short: "Set the default project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := a.activity.Project(cmd.Context(), args[0]); err != nil {
			return err
		}
		// Only the file settings are written back, never env overrides.
		fileCfg, err := config.LoadFile(dataDir)
		if err != nil {
			return err
		}
		fileCfg.DefaultProject = args[0]
		if err := config.Save(dataDir, fileCfg); err != nil {
			return err
		}
		cfg.DefaultProject = args[0]
		fmt.Fprintf(cmd.OutOrStdout(), "Default project set to %s\n", args[0])
		return nil
	},
}

var projectLinkCmd = &cobra.Command{
	Use:   "link [project-id]",
	Short: "Link the current directory to a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var projectID string
		if len(args) == 1 {
			projectID = args[0]
		} else {
			projects, err := a.activity.Projects(ctx)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				return fmt.Errorf("no projects available; run: fieldsync project refresh")
			}
			opts := make([]huh.Option[string], len(projects))
			for i, p := range projects {
				opts[i] = huh.NewOption(fmt.Sprintf("%s  %s", p.ID, p.Name), p.ID)
			}
			if err := huh.NewSelect[string]().
				Title("Select a project").
				Options(opts...).
				Value(&projectID).
				Run(); err != nil {
				return fmt.Errorf("selection cancelled")
			}
		}

		if _, err := a.activity.Project(ctx, projectID); err != nil {
			return fmt.Errorf("project %s not found", projectID)
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := sitefile.Write(cwd, projectID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to project %s\n", sitefile.FileName, projectID)
		return nil
	},
}

var projectUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Remove the directory's project link",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		linked, err := sitefile.Read(cwd)
		if err != nil {
			return err
		}
		if linked == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No project linked.")
			return nil
		}
		if err := sitefile.Remove(cwd); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Unlinked project.")
		return nil
	},
}

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRefreshCmd)
	projectCmd.AddCommand(projectSetDefaultCmd)
	projectCmd.AddCommand(projectLinkCmd)
	projectCmd.AddCommand(projectUnlinkCmd)
	rootCmd.AddCommand(projectCmd)
}
