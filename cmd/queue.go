package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rogersnm/fieldsync/internal/markdown"
	"github.com/rogersnm/fieldsync/internal/queue"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and repair the outbound queues",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued reports and commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := a.captures.Status(ctx)
		if err != nil {
			return err
		}
		cmds, err := a.commands.Items(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if st.Degraded {
			fmt.Fprintln(out, "Local store unavailable: nothing can be queued on this device.")
			return nil
		}
		fmt.Fprintln(out, markdown.RenderEntityHeader("Reports", nil))
		fmt.Fprintln(out, markdown.RenderCaptureQueueTable(st.Items))
		fmt.Fprintln(out, markdown.RenderEntityHeader("Commands", nil))
		fmt.Fprintln(out, markdown.RenderCommandTable(cmds))
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Clear a rejection and send the item again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, fullID, err := resolveQueued(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if kind == kindCapture {
			if err := a.captures.RetryItem(ctx, fullID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Delivered report %s\n", fullID)
			return nil
		}
		if err := a.commands.Retry(ctx, fullID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Command %s will be sent on the next sync\n", fullID)
		return nil
	},
}

var queueDiscardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Drop a queued item without sending it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		kind, fullID, err := resolveQueued(ctx, args[0])
		if err != nil {
			return err
		}
		if err := confirm(cmd, fmt.Sprintf("Discard %s %s? It will never reach the server.", kind, fullID)); err != nil {
			return err
		}
		if kind == kindCapture {
			err = a.capture.Discard(ctx, fullID)
		} else {
			err = a.commands.Discard(ctx, fullID)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s %s\n", kind, fullID)
		return nil
	},
}

const (
	kindCapture = "report"
	kindCommand = "command"
)

// resolveQueued finds the queued item whose id starts with prefix.
func resolveQueued(ctx context.Context, prefix string) (kind, fullID string, err error) {
	st, err := a.captures.Status(ctx)
	if err != nil {
		return "", "", err
	}
	cmds, err := a.commands.Items(ctx)
	if err != nil {
		return "", "", err
	}

	var matches [][2]string
	for _, it := range st.Items {
		if strings.HasPrefix(it.LocalID, prefix) {
			matches = append(matches, [2]string{kindCapture, it.LocalID})
		}
	}
	for _, c := range cmds {
		if strings.HasPrefix(c.ID, prefix) {
			matches = append(matches, [2]string{kindCommand, c.ID})
		}
	}
	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("%s: %w", prefix, queue.ErrItemNotFound)
	case 1:
		return matches[0][0], matches[0][1], nil
	default:
		return "", "", fmt.Errorf("%q matches %d queued items, use more characters", prefix, len(matches))
	}
}

func init() {
	queueDiscardCmd.Flags().BoolP("force", "f", false, "skip confirmation")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueDiscardCmd)
	rootCmd.AddCommand(queueCmd)
}
