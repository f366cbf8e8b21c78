// Package conn implements the per-connection state machine: read one
// pipelined command, route it to a shard (or answer it directly for
// HELLO), wait for the shard's reply to be written, then read the next
// command. A Connection owns its resp.Stream and net.Conn for its
// entire lifetime. For a GET, SET or DEL it lends the stream to the
// selected shard's goroutine, which reads the arguments and writes the
// reply, and does not touch the stream again until that shard signals
// completion.
//
// # Disposition table
//
// Every error a resp.Stream method returns carries a resp.Kind, and
// Connection is the only place that kind is switched on:
//
//   - Hard: write -ERR <msg>, then close the socket.
//   - Soft: write -ERR <msg>, drain the rest of the current pipeline
//     element with SkipRemainingStrings, then keep reading.
//   - Closed: close the socket without writing anything.
//   - ReadWrite: log at debug, close the socket without writing
//     anything.
package conn
