// Package netengine owns the network resources behind a loop runtime: one
// http.Transport whose dialer counts every open connection and whose round
// tripper counts in-flight requests.
//
// The engine is a drain target. After the runtime closes, AwaitInactivity
// keeps closing idle connections until none are open, so a leaked socket shows
// up as a drain timeout instead of a silently growing fd count.
package netengine
