// Package log provides the structured logging abstraction used by loopleak.
//
// Library packages (session, loop, webclient, harness) accept a Logger and
// fall back to NoopLogger, so embedding loopleak never produces output unless
// the caller asks for it. The CLI wires the zerolog adapter.
//
// # Usage
//
//	logger := log.NewZerologAdapter(os.Stderr, zerolog.InfoLevel)
//	sessLog := log.With(logger, log.Component("session"))
//	sessLog.Info("runtime initialized", log.Phase("init"), log.Elapsed(d))
//
// # Lifecycle fields
//
// Lifecycle events carry the same small vocabulary so they can be filtered
// uniformly: component, phase, outcome and elapsed. Use the Component,
// Phase, Outcome and Elapsed constructors rather than ad-hoc keys.
package log
