// Package loopleak repeatedly creates and destroys single-worker event-loop
// runtimes with an HTTP client on top, sampling file descriptors, goroutines
// and OS threads after each cycle.
//
// Example usage:
//
//	cfg := loopleak.DefaultConfig()
//	cfg.Iterations = 10
//	cfg.TargetURL = "http://localhost:8080/delay/{n}"
//	if err := loopleak.Run(context.Background(), cfg, nil); err != nil {
//	    log.Fatal(err)
//	}
package loopleak

import (
	"context"

	"github.com/bft-labs/loopleak/internal/cliconfig"
	"github.com/bft-labs/loopleak/internal/harness"
	"github.com/bft-labs/loopleak/pkg/log"
)

// Config holds the harness configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// IterationReport describes one create/run/destroy cycle.
type IterationReport = harness.IterationReport

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Run executes the configured iterations. It blocks until they finish or ctx
// is cancelled. A nil logger discards output.
func Run(ctx context.Context, cfg Config, logger log.Logger) error {
	r, err := harness.New(cfg, harness.WithLogger(logger))
	if err != nil {
		return err
	}
	return r.Run(ctx)
}
