// Package bumpalloc implements the block-based bump allocator that backs
// every shard's value storage.
//
// # Overview
//
// Small values (≤ BlockSize) are bump-allocated: each Block is a flat byte
// buffer with a tail cursor, and an allocation just reads its bytes
// directly into the next free range — no intermediate copy, no free-list
// scan. Large values (> BlockSize) bypass blocks entirely and are owned
// standalone byte slices.
//
// # Fragmentation and defragmentation
//
// Deleting or overwriting a key releases its Small value's range back to
// its Block's (and the Allocator's) reusable counter, but the bytes
// themselves are not reclaimed until Defragment runs: a Block only ever
// grows its tail cursor forward. Once the Allocator's total reusable bytes
// reach FragmentationThreshold (20% of BlockSize), Allocator.ShouldDefragment
// reports true and the caller (internal/shard, after every SET/DEL) runs
// Defragment, which marks every Block whose own reusable bytes reach that
// threshold, relocates every live value still sitting in a marked block
// into an unmarked one (appending a new block if none has room), and resets
// the marked blocks for reuse.
//
// # Decoupling from the map
//
// Allocator.Defragment needs to walk every live value and possibly rewrite
// it, but this package must not import internal/rhmap (that would be a
// pointless dependency in the wrong direction — the map package has no
// reason to know about block allocation). Instead Defragment takes a
// LiveValues, a narrow interface describing exactly the traversal it
// needs; internal/rhmap.Map[Value] satisfies it structurally without
// either package importing the other.
package bumpalloc
