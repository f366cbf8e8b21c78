// Package logbus is the server's LogWriter task: a goroutine that owns a
// *zap.Logger and accepts log records over a bounded channel. Every
// other component treats logging as fire-and-forget, matching the
// disposition table's rule that a log failure never fails a request —
// here that is enforced structurally, since Debug/Info/Warn/Error never
// block the caller and never return an error. If the channel is full,
// the record is dropped on the floor rather than backing up the caller;
// a busy server sheds log volume before it sheds client latency.
package logbus
