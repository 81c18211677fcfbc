package lifecycle

import (
	"time"

	"github.com/bft-labs/loopleak/pkg/log"
)

// Outcome is the result of awaiting one Target.
type Outcome struct {
	Target  string
	Drained bool
	Elapsed time.Duration
}

// Drain awaits each target in order, each bounded by timeout. A target that
// does not confirm is logged as a warning and the next one is awaited; the
// total time is bounded by len(targets)*timeout.
func Drain(targets []Target, timeout time.Duration, logger log.Logger) []Outcome {
	logger = log.OrNoop(logger)
	outcomes := make([]Outcome, 0, len(targets))
	for _, t := range targets {
		start := time.Now()
		ok := t.AwaitInactivity(timeout)
		o := Outcome{Target: t.Name(), Drained: ok, Elapsed: time.Since(start)}
		outcomes = append(outcomes, o)

		if ok {
			logger.Info("subsystem drained",
				log.Phase("drain"),
				log.String("target", o.Target),
				log.Outcome("ok"),
				log.Elapsed(o.Elapsed),
			)
			continue
		}
		logger.Warn("subsystem drain timed out",
			log.Phase("drain"),
			log.String("target", o.Target),
			log.Outcome("timeout"),
			log.Duration("timeout", timeout),
			log.Elapsed(o.Elapsed),
		)
	}
	return outcomes
}
