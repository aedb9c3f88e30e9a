package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/readdeck/internal/rss"
	"github.com/bryan-buckman/readdeck/internal/server"
	"github.com/bryan-buckman/readdeck/internal/store"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface and background poller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openStore()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			log.Printf("cli: using %s database", db.DatabaseType())

			stores, err := store.NewSet(ctx, db)
			if err != nil {
				return err
			}
			go stores.Sprite.Follow(ctx, stores.Tasks)

			var poller *rss.Poller
			if cfg.Poller.Enabled {
				poller = rss.NewPoller(db, rss.NewFetcher(db), stores.Tasks)
				poller.AfterRun = func(ctx context.Context, _ rss.Summary) {
					if err := stores.Feeds.Reload(ctx); err != nil {
						log.Printf("cli: reload feeds: %v", err)
					}
				}
				poller.Start()
				defer poller.Stop()
			}

			srv, err := server.New(db, stores, poller, server.Options{MaxBodyBytes: cfg.Server.MaxBodyBytes})
			if err != nil {
				return err
			}
			return srv.Run(ctx, &http.Server{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
