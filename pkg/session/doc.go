// Package session manages the lifecycle of one event-loop runtime.
//
// A Session owns exactly one loop.Loop. The caller hands work to the runtime
// with Submit, then calls AwaitAndShutdown to wait for the result, close the
// runtime and drain every background subsystem with a bounded wait:
//
//	s, err := session.New(session.WithShutdownTimeout(5 * time.Second))
//	if err != nil {
//		return err
//	}
//	h, err := session.Submit(s, work)
//	if err != nil {
//		return err
//	}
//	res, report := session.AwaitAndShutdown(ctx, s, h)
//
// Run combines both steps. Sessions are single-use.
//
// The lifecycle is a forward-only state machine:
//
//	Created -> RunInvoked -> ResultReady -> CloseRequested -> RuntimeClosed -> SubsystemsDrained
//
// with Created -> CloseRequested for a session closed without work,
// RunInvoked -> CloseRequested when the caller stops waiting for a result,
// and CloseRequested -> SubsystemsDrained when the runtime never confirms its
// close within the wait bound.
package session
