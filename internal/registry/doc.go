// Package registry holds the fixed set of shards the server was started
// with and selects one for a given key hash using rendezvous hashing:
// for shard index i and key hash h, score(i) = hasher.HashPair(i, h);
// the shard with the highest score wins, ties broken toward the lower
// index.
//
// Rendezvous hashing is used instead of a modulo or consistent-hash ring
// because the shard count here is fixed for the life of the process
// (spec.md's clustering model never adds or removes shards at runtime),
// so the ring's main selling point, minimal key movement on membership
// change, buys nothing; rendezvous gives a simpler, allocation-free
// O(shards) selection with the same uniformity guarantee.
package registry
