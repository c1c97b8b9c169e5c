// argusd is the trading-signal decision daemon: it scores, debates, gates
// and risk-checks module signals, serving decisions over HTTP or one-shot
// from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/argusquant/argusd/internal/config"
	"github.com/argusquant/argusd/internal/engine"
	httpapi "github.com/argusquant/argusd/internal/interfaces/http"
	applog "github.com/argusquant/argusd/internal/log"
	"github.com/argusquant/argusd/internal/metrics"
	"github.com/argusquant/argusd/internal/persistence/postgres"
	"github.com/argusquant/argusd/internal/persistence/redis"
	"github.com/argusquant/argusd/internal/weights"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "argusd",
		Short:         "Trading-signal decision core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(evaluateCmd(&configPath))
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the argusd version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "argusd "+version)
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the decision API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := applog.New(cfg.Log.Level, cfg.Log.Pretty)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)

			eng, store, cleanup, err := buildEngine(cfg, m, log)
			if err != nil {
				return err
			}
			defer cleanup()

			if store != nil {
				if err := store.Refresh(ctx); err != nil {
					log.Warn().Err(err).Msg("initial weight refresh failed, using static tables")
				}
				go store.RunRefresher(ctx, cfg.RefreshInterval())
			}
			go sweepLoop(ctx, eng)

			srv := httpapi.NewServer(httpapi.ServerConfig{
				Host:         cfg.Server.Host,
				Port:         cfg.Server.Port,
				ReadTimeout:  cfg.ReadTimeout(),
				WriteTimeout: cfg.WriteTimeout(),
				RateLimit:    cfg.Server.RateLimit,
				RateBurst:    cfg.Server.RateBurst,
			}, eng, reg, log)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
}

func evaluateCmd(configPath *string) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one signal from a JSON file and print the decision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := applog.New(cfg.Log.Level, cfg.Log.Pretty)

			raw, err := readInput(inputPath)
			if err != nil {
				return err
			}
			var in engine.Input
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("parse input: %w", err)
			}

			eng, _, cleanup, err := buildEngine(cfg, nil, log)
			if err != nil {
				return err
			}
			defer cleanup()

			decision, trace := eng.Evaluate(in)
			out, err := json.MarshalIndent(map[string]any{
				"decision": decision,
				"trace":    trace,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input file, or - for stdin")
	return cmd
}

// buildEngine assembles the engine with the configured learned-weight
// backend. The returned cleanup closes backend connections.
func buildEngine(cfg config.Config, m *metrics.Metrics, log zerolog.Logger) (*engine.Engine, *weights.Store, func(), error) {
	cleanup := func() {}

	var source weights.Source
	switch cfg.Weights.Source {
	case "postgres":
		repo, err := postgres.NewWeightsRepo(cfg.Weights.PostgresDSN)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() { _ = repo.Close() }
		source = weights.NewBreakerSource("postgres", repo)
	case "redis":
		repo, err := redis.NewWeightsRepo(cfg.Weights.RedisAddr, cfg.Weights.RedisKey)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() { _ = repo.Close() }
		source = weights.NewBreakerSource("redis", repo)
	}

	opts := []engine.Option{
		engine.WithSink(engine.ZerologSink{Log: log}),
	}
	if m != nil {
		opts = append(opts, engine.WithMetrics(m))
	}

	var store *weights.Store
	if source != nil {
		store = weights.NewStore(source, log)
		opts = append(opts, engine.WithLearnedWeights(store))
	}

	return engine.New(cfg.Engine, opts...), store, cleanup, nil
}

// sweepLoop expires idempotency fingerprints in the background.
func sweepLoop(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eng.Sweep()
		}
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
