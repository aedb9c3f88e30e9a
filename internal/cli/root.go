// Package cli wires configuration, storage and the server into commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/bryan-buckman/readdeck/internal/config"
	"github.com/bryan-buckman/readdeck/internal/database"
)

var (
	cfgPath string
	cfg     config.Config
)

// Execute runs the readdeck command line.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "readdeck",
		Short:        "A self-hosted feed reader",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./config.toml or ~/.config/readdeck/config.toml)")

	root.AddCommand(serveCmd(), refreshCmd(), importCmd(), exportCmd(), cleanupCmd(), widgetsCmd())
	return root
}

func openStore() (database.Store, error) {
	return database.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
}
