// Package harness repeatedly creates, exercises and destroys event-loop
// sessions and samples process resources after each cycle, so descriptors,
// goroutines or threads that survive a shutdown show up as drift across
// iterations.
package harness
