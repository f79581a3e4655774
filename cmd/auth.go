package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/rogersnm/fieldsync/internal/config"
	"github.com/rogersnm/fieldsync/internal/remote"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the API token",
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token [token]",
	Short: "Store an API token after checking it against the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			if err := huh.NewInput().
				Title("API token").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Run(); err != nil {
				return fmt.Errorf("cancelled (pass the token as an argument to skip the prompt)")
			}
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("token is required")
		}

		client := remote.New(cfg.API.URL, token, remote.WithTimeout(cfg.API.Timeout.Std()))
		projects, err := client.ListProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking token: %w", err)
		}

		fileCfg, err := config.LoadFile(dataDir)
		if err != nil {
			return err
		}
		fileCfg.API.Token = token
		if err := config.Save(dataDir, fileCfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authenticated (%d projects visible)\n", len(projects))
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		fileCfg, err := config.LoadFile(dataDir)
		if err != nil {
			return err
		}
		fileCfg.API.Token = ""
		if err := config.Save(dataDir, fileCfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server and whether a token is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Server: %s\n", cfg.API.URL)
		if cfg.API.Token == "" {
			fmt.Fprintln(out, "Not logged in. Run: fieldsync auth set-token")
			return nil
		}
		fmt.Fprintf(out, "Token: %s...\n", cfg.API.Token[:min(8, len(cfg.API.Token))])
		return nil
	},
}

func init() {
	authCmd.AddCommand(authSetTokenCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
