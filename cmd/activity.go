package cmd

import (
	"fmt"
	"strings"

	"github.com/rogersnm/fieldsync/internal/markdown"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "View and update the project schedule",
}

var activityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached activities",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := resolveProject(cmd)
		if err != nil {
			return err
		}
		acts, err := a.activity.List(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), markdown.RenderActivityTable(acts))
		return nil
	},
}

var activityRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the schedule from the server, keeping unsent local changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := resolveProject(cmd)
		if err != nil {
			return err
		}
		acts, err := a.activity.Refresh(cmd.Context(), projectID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), markdown.RenderActivityTable(acts))
		return nil
	},
}

var activitySetStatusCmd = &cobra.Command{
	Use:   "set-status <activity-id> <status>",
	Short: "Change an activity's status; the change is queued for the server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := resolveProject(cmd)
		if err != nil {
			return err
		}
		status := model.ActivityStatus(strings.ToLower(args[1]))
		var progress *int
		if cmd.Flags().Changed("progress") {
			p, _ := cmd.Flags().GetInt("progress")
			progress = &p
		}
		if err := a.activity.SetStatus(cmd.Context(), projectID, args[0], status, progress); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Activity %s set to %s\n", args[0], markdown.RenderStatus(status))
		return nil
	},
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Raise and resolve punch-list issues",
}

var issueRaiseCmd = &cobra.Command{
	Use:   "raise <title>",
	Short: "Raise an issue against an activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := resolveProject(cmd)
		if err != nil {
			return err
		}
		activityID, _ := cmd.Flags().GetString("activity")
		is, err := a.activity.RaiseIssue(cmd.Context(), projectID, activityID, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Raised issue %s\n", is.ID)
		return nil
	},
}

var issueResolveCmd = &cobra.Command{
	Use:   "resolve <issue-id>",
	Short: "Resolve an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		is, err := a.activity.ResolveIssue(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Resolved issue %s\n", is.ID)
		return nil
	},
}

var issueListCmd = &cobra.Command{
	Use:   "list <activity-id>",
	Short: "List issues raised against an activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		issues, err := a.activity.Issues(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), markdown.RenderIssueTable(issues))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{activityListCmd, activityRefreshCmd, activitySetStatusCmd, issueRaiseCmd} {
		c.Flags().StringP("project", "p", "", "project id")
	}
	activitySetStatusCmd.Flags().Int("progress", 0, "progress, 0-100")
	issueRaiseCmd.Flags().StringP("activity", "a", "", "activity id")

	activityCmd.AddCommand(activityListCmd)
	activityCmd.AddCommand(activityRefreshCmd)
	activityCmd.AddCommand(activitySetStatusCmd)
	rootCmd.AddCommand(activityCmd)

	issueCmd.AddCommand(issueRaiseCmd)
	issueCmd.AddCommand(issueResolveCmd)
	issueCmd.AddCommand(issueListCmd)
	rootCmd.AddCommand(issueCmd)
}
