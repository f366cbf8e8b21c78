package registry

import (
	"golang.org/x/exp/slices"

	"github.com/dreamware/kvi/internal/hashutil"
	"github.com/dreamware/kvi/internal/shard"
)

// Registry holds the fixed shard set for a running server and resolves a
// key hash to the shard that owns it.
type Registry struct {
	hasher hashutil.Hasher
	shards []*shard.Shard
}

// New returns a Registry over shards, selecting with hasher. shards must
// be non-empty and is retained, not copied; callers must not mutate the
// slice afterward.
func New(hasher hashutil.Hasher, shards []*shard.Shard) *Registry {
	return &Registry{hasher: hasher, shards: shards}
}

// Shards returns the registry's shard set. The returned slice is the
// registry's own backing array; callers that need a stable snapshot for
// a KEYS chain (internal/conn does) should not rely on it remaining
// unmutated if the registry is ever extended to support re-sharding —
// today it is fixed for the process lifetime, so a direct use is safe.
func (r *Registry) Shards() []*shard.Shard {
	return r.shards
}

// Select returns the shard that owns keyHash: the shard index i that
// maximizes hasher.HashPair(int64(i), keyHash), breaking ties toward the
// lower index.
func (r *Registry) Select(keyHash int64) *shard.Shard {
	best := 0
	bestScore := r.hasher.HashPair(0, keyHash)
	for i := 1; i < len(r.shards); i++ {
		score := r.hasher.HashPair(int64(i), keyHash)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return r.shards[best]
}

// ScoreBoard is a diagnostic view of every shard's rendezvous score for
// keyHash, sorted by descending score (the winner first) with ties
// broken by ascending shard index — the same tie-break Select uses,
// made visible for logging and debugging shard-selection skew.
type ScoreBoard struct {
	ShardIndex int
	Score      int64
}

// Scores computes and sorts the full score board for keyHash. It is O(n
// log n) in the shard count and is not used on the request hot path;
// internal/logbus debug logging is the intended caller.
func (r *Registry) Scores(keyHash int64) []ScoreBoard {
	board := make([]ScoreBoard, len(r.shards))
	for i := range r.shards {
		board[i] = ScoreBoard{ShardIndex: i, Score: r.hasher.HashPair(int64(i), keyHash)}
	}
	slices.SortFunc(board, func(a, b ScoreBoard) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return a.ShardIndex - b.ShardIndex
	})
	return board
}
