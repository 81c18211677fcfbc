// Package lifecycle provides the session state machine and the bounded
// drain of background subsystems.
//
// # State Machine
//
// A session only moves forward:
//   - Created -> RunInvoked, CloseRequested
//   - RunInvoked -> ResultReady, CloseRequested
//   - ResultReady -> CloseRequested
//   - CloseRequested -> RuntimeClosed, SubsystemsDrained
//   - RuntimeClosed -> SubsystemsDrained
//
// SubsystemsDrained is terminal. CloseRequested may skip to
// SubsystemsDrained when the runtime never confirmed its close within the
// caller's deadline; draining still happens.
//
// # Targets
//
// A Target is a background subsystem that can report when it has become
// inactive. Drain awaits a list of targets in order, each bounded by the same
// timeout, and reports every outcome without failing.
//
//	outcomes := lifecycle.Drain(targets, 5*time.Second, logger)
//	for _, o := range outcomes {
//	    if !o.Drained { ... }
//	}
package lifecycle
