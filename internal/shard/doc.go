// Package shard implements the storage unit of the server: a goroutine
// that owns exactly one rhmap.Map[bumpalloc.Value] and one
// bumpalloc.Allocator, and processes one Request at a time from its
// inbox channel.
//
// # Actor model
//
// A Shard is not safe to touch from outside its own goroutine. Every
// interaction happens by sending a Request to Submit; the handler reads
// or writes the shard's map and allocator synchronously, writes a reply
// onto the Request's stream, and signals completion on Done (or, for
// OpKeys, forwards the request to the next shard in the chain and lets
// the last shard in the chain signal KeysDone). There is no lock,
// because there is no second goroutine that could ever race with the
// one running Run.
//
// # Why the stream travels in the Request
//
// internal/conn hands the *resp.Stream for the connection currently
// being served into the Request, and does not touch it again until the
// shard answers. This gives per-connection command ordering for free:
// the connection goroutine is parked on a channel receive, so it cannot
// read the next command from the socket until the shard it handed the
// stream to is done with it.
//
// # Defragmentation
//
// After a SET or DEL that mutates this shard's map, the handler checks
// Allocator.ShouldDefragment and runs Allocator.Defragment(s.m) inline
// if so. s.m satisfies bumpalloc.LiveValues structurally; package shard
// is the one place that fact gets exercised, since it is the only
// package that holds both a rhmap.Map and a bumpalloc.Allocator at once.
package shard
