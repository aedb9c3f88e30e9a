package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/readdeck/internal/opml"
	"github.com/bryan-buckman/readdeck/internal/rss"
	"github.com/bryan-buckman/readdeck/internal/store"
)

// refresh: fetch every feed once and exit.
func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every feed once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			poller := rss.NewPoller(db, rss.NewFetcher(db), store.NewTasksStore())
			sum, err := poller.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d new articles from %d feeds\n", sum.NewItems, sum.Feeds)
			return nil
		},
	}
}

// import <file.opml>: subscribe to every feed in an OPML file.
func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.opml>",
		Short: "Import subscriptions from an OPML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			res, err := opml.Import(cmd.Context(), db, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d feeds\n", res.Imported, res.Total)
			return nil
		},
	}
}

// export [file]: write subscriptions as OPML to file or stdout.
func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export subscriptions as OPML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			data, err := opml.ExportSubscriptions(cmd.Context(), db, "Readdeck Feeds", time.Now())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(args[0], data, 0o644)
		},
	}
}

// cleanup: delete read articles that are not favorites.
func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete read articles that are not favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			n, err := db.CleanupReadArticles(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d articles\n", n)
			return nil
		},
	}
}
