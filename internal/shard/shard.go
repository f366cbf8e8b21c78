package shard

import (
	"context"
	"sync/atomic"

	"github.com/dreamware/kvi/internal/bumpalloc"
	"github.com/dreamware/kvi/internal/rhmap"
)

// inboxSize bounds how many in-flight requests (from distinct connections,
// or forwarded KEYS chain links) a shard will buffer before Submit blocks
// the sender. It is deliberately small: a shard processes one request to
// completion before dequeuing the next, so a deep backlog just means
// callers are waiting longer, not that work is being dropped.
const inboxSize = 32

// Stats holds cumulative operation counters for a Shard, updated with
// sync/atomic so Snapshot can be called concurrently from any goroutine
// while the shard's own goroutine keeps processing requests.
type Stats struct {
	Gets      uint64
	Sets      uint64
	Deletes   uint64
	KeysCalls uint64
}

// Shard owns one map and one allocator and serves requests delivered to
// its inbox. The zero value is not usable; construct one with New.
type Shard struct {
	ID int

	inbox chan Request
	m     *rhmap.Map[bumpalloc.Value]
	alloc *bumpalloc.Allocator

	gets      uint64
	sets      uint64
	deletes   uint64
	keysCalls uint64
}

// New returns a Shard with an empty map and a freshly initialized
// allocator. Call Run in its own goroutine to start processing requests.
func New(id int) *Shard {
	return &Shard{
		ID:    id,
		inbox: make(chan Request, inboxSize),
		m:     rhmap.New[bumpalloc.Value](),
		alloc: bumpalloc.NewAllocator(),
	}
}

// Submit enqueues req onto the shard's inbox. It blocks if the inbox is
// full; callers that must not block (none currently) should select on
// req.Done/KeysDone instead of calling Submit directly.
func (s *Shard) Submit(req Request) {
	s.inbox <- req
}

// Run processes requests from the inbox until ctx is done. It is meant
// to be the body of the shard's dedicated goroutine for the lifetime of
// the process; there is no graceful "drain and stop" path because the
// server shuts down by closing listening sockets, not by tearing down
// shards (spec'd in the concurrency model: shards are not part of the
// shutdown sequence).
func (s *Shard) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.inbox:
			s.handle(req)
		}
	}
}

func (s *Shard) handle(req Request) {
	switch req.Kind {
	case OpSet:
		s.handleSet(req)
	case OpGet:
		s.handleGet(req)
	case OpDel:
		s.handleDel(req)
	case OpKeys:
		s.handleKeys(req)
	}
}

func (s *Shard) handleSet(req Request) {
	size, err := req.Stream.ReadBulkStringHeader()
	if err != nil {
		req.Done <- err
		return
	}
	val, err := s.alloc.Allocate(req.Stream, size)
	if err != nil {
		req.Done <- err
		return
	}
	if err := req.Stream.FinishBulkValue(); err != nil {
		req.Done <- err
		return
	}

	old, existed := s.m.Set(req.Key, val)
	if existed {
		s.alloc.Release(old)
	}
	atomic.AddUint64(&s.sets, 1)

	if s.alloc.ShouldDefragment() {
		s.alloc.Defragment(s.m)
	}

	req.Stream.WriteOK()
	req.Done <- nil
}

func (s *Shard) handleGet(req Request) {
	val, ok := s.m.Get(req.Key)
	atomic.AddUint64(&s.gets, 1)
	if !ok {
		req.Stream.WriteNil()
		req.Done <- nil
		return
	}
	req.Done <- req.Stream.WriteBulkString(val.Data())
}

func (s *Shard) handleDel(req Request) {
	val, ok := s.m.Remove(req.Key)
	atomic.AddUint64(&s.deletes, 1)
	if !ok {
		req.Stream.WriteInt(0)
		req.Done <- nil
		return
	}

	s.alloc.Release(val)
	if s.alloc.ShouldDefragment() {
		s.alloc.Defragment(s.m)
	}

	req.Stream.WriteInt(1)
	req.Done <- nil
}

func (s *Shard) handleKeys(req Request) {
	atomic.AddUint64(&s.keysCalls, 1)
	acc := append(req.Acc, s.m.Keys()...)

	if len(req.Remaining) == 0 {
		req.KeysDone <- acc
		return
	}

	next := req.Remaining[0]
	next.Submit(Request{
		Kind:      OpKeys,
		Stream:    req.Stream,
		Remaining: req.Remaining[1:],
		Acc:       acc,
		KeysDone:  req.KeysDone,
	})
}

// Snapshot returns a consistent point-in-time copy of the shard's
// operation counters.
func (s *Shard) Snapshot() Stats {
	return Stats{
		Gets:      atomic.LoadUint64(&s.gets),
		Sets:      atomic.LoadUint64(&s.sets),
		Deletes:   atomic.LoadUint64(&s.deletes),
		KeysCalls: atomic.LoadUint64(&s.keysCalls),
	}
}

// Len reports the number of keys currently stored, for tests and
// diagnostics. It must only be called from the shard's own goroutine
// (e.g. from within a Run-driven handler) or after Run has stopped;
// calling it concurrently with Run races on the underlying map.
func (s *Shard) Len() int {
	return s.m.Len()
}
