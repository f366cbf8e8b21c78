// Package rhmap implements a Robin Hood open-addressing hash map keyed by
// (name []byte, hash int64), used as the per-shard key→value index.
//
// # Overview
//
// Robin Hood hashing is open addressing with one twist: on insertion, an
// entry displaces any occupant whose probe distance is shorter than its
// own, carrying the displaced entry onward to find a new home. This keeps
// the variance of probe distances low, which keeps worst-case Get latency
// low without the pointer-chasing of a chained hash table.
//
// # Layout
//
// The map holds a single flat slice of slots, each either empty or holding
// an entry with (key, value, distance). Capacity is always a power of two
// so the desired slot for a hash is a mask (hash & (capacity-1)) rather
// than a modulo. The map resizes (doubling capacity) once size reaches 90%
// of capacity.
//
// # Distance invariant
//
// For any present entry at slot i, distance == (i - desired(key.hash)) mod
// capacity. Get() exploits this: while probing forward from the desired
// slot, if the occupant at the current slot has a smaller distance than
// the distance we've already walked, the key we're looking for cannot be
// further ahead (it would have displaced that occupant), so the probe can
// stop and report "not found" without scanning the rest of the table.
//
// # Generics
//
// Map is generic over its value type (Map[V any]) so the same
// implementation backs both a bumpalloc.Value (the real shard use) and a
// plain-value map in tests, without internal/rhmap importing
// internal/bumpalloc.
package rhmap
