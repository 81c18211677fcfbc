// Package webclient provides an asynchronous HTTP client bound to a
// loop.Loop.
//
// Requests run on their own goroutines through the loop's network engine and
// their completions are delivered on the loop worker, so callbacks attached
// to the returned futures observe the same single-threaded ordering as other
// loop tasks. The client registers itself as a loop close hook: closing the
// loop cancels every in-flight request.
package webclient
