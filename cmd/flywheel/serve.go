package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/elys-network/flywheel/internal/eventlog"
	"github.com/elys-network/flywheel/internal/keeper"
	"github.com/elys-network/flywheel/internal/types"
	"github.com/elys-network/flywheel/internal/web"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional keeper",
		Long: `Run the flywheel HTTP API and, when FLYWHEEL_KEEPER_SCHEDULE is set,
a keeper that attempts an execution on every scheduled tick.

Examples:
  flywheel serve
  FLYWHEEL_KEEPER_SCHEDULE="0 */10 * * * *" flywheel serve --run-on-start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, runOnStart)
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "trigger one keeper run immediately")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, runOnStart bool) error {
	cfg := opts.Config
	log.Info().Msg("Flywheel starting...")

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cache := eventlog.NewCache(a.events, nil, cfg.EventCacheTTL).WithSource(a.store, 0)

	server, err := web.NewWebServer(web.Config{
		Service: a.engine,
		Events:  cache,
		Defaults: web.InitDefaults{
			TokenMint:  cfg.TokenMint,
			FeeVault:   cfg.FeeVault,
			EpochStart: cfg.EpochStart,
			EpochEnd:   cfg.EpochEnd,
		},
		Port:          cfg.WebPort,
		MaxEventLimit: a.events.Retention(),
		RatePerMinute: cfg.RateLimitPerMinute,
		RateBurst:     cfg.RateLimitBurst,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx)
	})

	if cfg.KeeperSchedule != "" {
		k, err := keeper.New(keeper.Config{
			Executor:   a.engine,
			Identity:   cfg.KeeperIdentity,
			Schedule:   cfg.KeeperSchedule,
			RunOnStart: runOnStart,
			OnExecuted: func(*types.ExecutionResult) { cache.Invalidate() },
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return k.Run(gctx)
		})
	} else {
		log.Info().Msg("Keeper disabled; set FLYWHEEL_KEEPER_SCHEDULE to enable it")
	}

	log.Info().Str("port", cfg.WebPort).Str("url", "http://localhost:"+cfg.WebPort).Msg("Flywheel API listening")

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Flywheel stopped")
	return nil
}
