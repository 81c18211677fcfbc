// Package loop implements the event-loop runtime wrapped by a session.
//
// A Loop runs every submitted task on one worker goroutine locked to its OS
// thread, in submission order. Timers post their callbacks back onto the
// worker. A watchdog goroutine warns when one task holds the worker for too
// long. The loop also owns a netengine.Engine so clients built on it share
// one tracked connection pool.
//
// Close is asynchronous: it stops intake, lets the worker drain queued tasks,
// runs close hooks, stops timers, releases idle connections and only then
// invokes the callback. After Close the watchdog, timers and network engine
// are exposed as drain targets through Targets.
package loop
