// Package resp implements a streaming codec for the subset of RESP3 this
// server speaks: array and map headers, bulk strings, signed integers,
// simple strings, and errors — enough for a HELLO 3 handshake followed by
// pipelined GET/SET/DEL/KEYS commands.
//
// # Streaming, not buffering
//
// Stream reads directly off the underlying connection through a small
// (128-byte) buffered reader; there is no intermediate "parse the whole
// message into a tree" step. A command's bulk string arguments are read
// one at a time, on demand, by the caller (internal/shard and
// internal/conn) — in particular, a SET's value bytes are read straight
// into a bumpalloc.Block by the allocator, with Stream acting as the
// io.Reader the allocator pulls from. This is why Stream never buffers an
// entire large bulk string in a Go byte slice: the caller chooses where
// the bytes land.
//
// # Pipelines
//
// A client sends a RESP3 outer array whose elements are themselves
// commands (bulk-string arrays) — a pipeline. Stream tracks how many
// top-level elements remain in the current pipeline (remaining) and
// starts a new one automatically once it hits zero, so
// ReadPipelineCommand can be called in a tight loop for the lifetime of a
// connection.
//
// # Error taxonomy
//
// Every error Stream methods return is a *Error carrying one of four
// Kinds (Hard, Soft, Closed, ReadWrite), matching the spec's disposition
// table. internal/conn is the only place that kind is switched on.
package resp
