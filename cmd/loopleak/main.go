package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/loopleak/internal/cliconfig"
	"github.com/bft-labs/loopleak/internal/harness"
	"github.com/bft-labs/loopleak/pkg/log"
	"github.com/bft-labs/loopleak/pkg/metrics"
)

const longHelp = `Repeatedly create and destroy a single-worker event loop with an HTTP
client on top, and report open file descriptors, goroutines and OS threads
after every cycle.

Each iteration starts a fresh runtime, fires --requests GETs against
--target-url ({n} is replaced by the request number), waits for all of them,
closes the runtime and waits for its background subsystems to go quiet.
Values that keep growing across iterations point at a shutdown leak.`

var exampleUsage = strings.TrimSpace(`
  loopleak --iterations 20 --requests 5
  loopleak --target-url http://localhost:8080/delay/{n} --metrics-addr :9090
  loopleak --config $HOME/.loopleak/config.toml --log-level debug
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "loopleak",
		Short:         "Detect resource leaks across event-loop create/destroy cycles",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			loader := cliconfig.Loader{Path: cfgFile, Base: cfg, Changed: changed}
			resolved, err := loader.Load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), loader, resolved)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.loopleak/config.toml)")
	root.Flags().IntVar(&cfg.Iterations, "iterations", cfg.Iterations, "number of create/run/destroy cycles")
	root.Flags().IntVar(&cfg.Requests, "requests", cfg.Requests, "requests fired per iteration")
	root.Flags().StringVar(&cfg.TargetURL, "target-url", cfg.TargetURL, "probe URL; {n} is replaced by the request number")
	root.Flags().DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "timeout of one probe request")
	root.Flags().DurationVar(&cfg.WorkTimeout, "work-timeout", cfg.WorkTimeout, "how long to wait for all requests of an iteration")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "wait bound per background subsystem on shutdown")
	root.Flags().DurationVar(&cfg.BlockedThreshold, "blocked-threshold", cfg.BlockedThreshold, "warn when one loop task runs longer than this")
	root.Flags().DurationVar(&cfg.Pause, "pause", cfg.Pause, "pause between iterations")
	root.Flags().DurationVar(&cfg.MaxBackoff, "max-backoff", cfg.MaxBackoff, "maximum pause after consecutive failed iterations (0 disables)")
	root.Flags().IntVar(&cfg.BreakerThreshold, "breaker-threshold", cfg.BreakerThreshold, "consecutive request failures that open the circuit breaker (0 disables)")
	root.Flags().DurationVar(&cfg.BreakerCooldown, "breaker-cooldown", cfg.BreakerCooldown, "time an open circuit breaker waits before probing again")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9090)")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "loopleak: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, loader cliconfig.Loader, cfg cliconfig.Config) error {
	logger, err := cliconfig.Logger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("configuration", log.Any("config", cfg))

	reg := metrics.NewRegistry()
	runner, err := harness.New(cfg,
		harness.WithLogger(logger),
		harness.WithMetrics(metrics.NewHarnessMetrics(reg), metrics.NewSessionMetrics(reg)),
	)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if loader.Path != "" && cliconfig.FileExists(loader.Path) {
		watcher := cliconfig.NewWatcher(loader, func(next cliconfig.Config) {
			if err := runner.Update(next); err != nil {
				logger.Warn("config update rejected", log.Err(err))
			}
		}, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("config watcher stopped", log.Err(err))
			}
		}()
	}

	return runner.Run(ctx)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", log.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", log.Err(err))
		}
	}()
	return srv
}
