package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skrblai/percy/internal/config"
	"github.com/skrblai/percy/internal/feed"
	"github.com/skrblai/percy/internal/gateway"
	"github.com/skrblai/percy/internal/intent"
	"github.com/skrblai/percy/internal/onboarding"
	"github.com/skrblai/percy/internal/scan"
	"github.com/skrblai/percy/internal/store"
	"github.com/skrblai/percy/internal/tracker"
	"github.com/skrblai/percy/internal/trial"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engagement engine gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			// Usage and activity rows always live in SQLite; the memory mode
			// only swaps the context and onboarding stores.
			dbPath := ":memory:"
			if cfg.Storage.Store == "sqlite" {
				dbPath = paths.DBPath(cfg.Storage)
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			var contexts tracker.LocalStore
			var states onboarding.StateStore
			if cfg.Storage.Store == "sqlite" {
				contexts = store.NewSQLiteContextStore(db)
				states = store.NewSQLiteOnboardingStore(db)
				log.Info().Str("path", dbPath).Msg("using SQLite stores")
			} else {
				contexts = store.NewMemoryContextStore()
				states = store.NewMemoryOnboardingStore()
				log.Info().Msg("using in-memory stores")
			}
			usage := store.NewUsageStore(db)
			activity := store.NewActivityStore(db)

			scorer := intent.NewScorer(cfg.Scoring)

			var syncer *tracker.Syncer
			if cfg.Sync.RemoteURL != "" {
				remote := tracker.NewHTTPRemote(cfg.Sync.RemoteURL, cfg.Sync.Token)
				syncer = tracker.NewSyncer(
					remote,
					time.Duration(cfg.Sync.IntervalSeconds)*time.Second,
					cfg.Sync.BatchSize,
					log,
				)
				log.Info().Str("remote", cfg.Sync.RemoteURL).Msg("remote context sync enabled")
			}

			tr := tracker.New(contexts, scorer, syncer, log)
			scanner := scan.NewHeuristicScanner(
				time.Duration(cfg.Scan.TimeoutSeconds)*time.Second,
				cfg.Scan.MaxBodyBytes,
				log,
			)
			entitlements := trial.NewLocalEntitlements(usage, cfg.Trial)
			gate := trial.NewGate(entitlements, usage, cfg.Trial.AlwaysAllow, log)
			hub := feed.NewHub(activity, log)
			engine := onboarding.NewEngine(states, tr, scanner, scorer, log)

			srv := gateway.New(cfg, log,
				gateway.WithTracker(tr),
				gateway.WithOnboarding(engine),
				gateway.WithScanner(scanner),
				gateway.WithGate(gate),
				gateway.WithHub(hub),
				gateway.WithActivityLog(activity),
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if syncer != nil {
				go syncer.Run(ctx)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
