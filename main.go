package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "1.9.0"

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iplogin",
		Short: "IP restriction for the admin login, with self-service whitelisting by secret key.",
		Long: `iplogin serves an admin area that is only reachable from allowed IP
addresses. Visiting /?key=<secret key> adds the visitor's IP to the
allow-list. The secret key can be changed once per day from the settings
page; selected administrators are emailed when it changes.

Running without a subcommand starts the server.`,
		SilenceUsage: true,
		Version:      version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./iplogin.yaml or /etc/iplogin/iplogin.yaml)")
	cmd.PersistentFlags().String("db", "", "SQLite database path")
	cmd.PersistentFlags().String("listen", "", "listen address (default :8888)")
	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newUninstallCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newCheckUpdateCmd())
	return cmd
}
