// Package netsrv implements the Accepter/Dispatcher layer: it owns the
// listening sockets and spawns a Connection goroutine for every accepted
// TCP socket.
//
// # Multiple accepters per listener
//
// Go's net.Listener.Accept is safe to call concurrently from multiple
// goroutines; the runtime and the OS cooperate to hand each incoming
// socket to exactly one caller. This package exploits that directly
// instead of reaching for SO_REUSEPORT or a dedicated dispatcher
// goroutine: for each listener, it starts the configured number of
// accepters, each running its own Accept loop on the same
// net.Listener. This matches the spec's "one Accepter per (IP,
// accepter) pair" model with a single shared net.Listener per IP.
package netsrv
