package bumpalloc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dreamware/kvi/internal/rhmap"
)

func TestAllocateSmallServedFromCurrentBlock(t *testing.T) {
	a := NewAllocator()
	v, err := a.Allocate(bytes.NewReader([]byte("hello")), 5)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if v.Kind != Small {
		t.Fatalf("expected Small, got %v", v.Kind)
	}
	if string(v.Data()) != "hello" {
		t.Fatalf("Data() = %q; want hello", v.Data())
	}
}

func TestAllocateLargeBypassesBlocks(t *testing.T) {
	a := NewAllocator()
	payload := bytes.Repeat([]byte{0xAB}, BlockSize+1)
	v, err := a.Allocate(bytes.NewReader(payload), len(payload))
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if v.Kind != Large {
		t.Fatalf("expected Large for payload > BlockSize, got %v", v.Kind)
	}
	if !bytes.Equal(v.Data(), payload) {
		t.Fatalf("Large value data mismatch")
	}
	if len(a.blocks) != 1 {
		t.Fatalf("Large allocation must not touch blocks, have %d", len(a.blocks))
	}
}

func TestAllocateIOErrorPropagates(t *testing.T) {
	a := NewAllocator()
	boom := errors.New("boom")
	_, err := a.Allocate(errReader{boom}, 10)
	if !errors.Is(err, boom) {
		t.Fatalf("Allocate error = %v; want %v", err, boom)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestAllocateRollsOverToNewBlockWhenTailTooSmall(t *testing.T) {
	a := NewAllocator()

	// Consume all but 10 bytes of the first block.
	_, err := a.Allocate(bytes.NewReader(make([]byte, BlockSize-10)), BlockSize-10)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(a.blocks) != 1 {
		t.Fatalf("expected still one block, have %d", len(a.blocks))
	}

	// This allocation doesn't fit in the 10-byte tail; it must roll over.
	v, err := a.Allocate(bytes.NewReader(make([]byte, 20)), 20)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(a.blocks) != 2 {
		t.Fatalf("expected a new block to have been created, have %d", len(a.blocks))
	}
	if v.Block != a.blocks[1] {
		t.Fatalf("expected the new value to live in the new block")
	}
	if a.blocks[0].reusable != 10 {
		t.Fatalf("expected the abandoned 10-byte tail to become reusable, got %d", a.blocks[0].reusable)
	}
}

func TestReleaseIncrementsReusable(t *testing.T) {
	a := NewAllocator()
	v, _ := a.Allocate(bytes.NewReader([]byte("hello")), 5)

	a.Release(v)
	if a.reusable != 5 {
		t.Fatalf("allocator.reusable = %d; want 5", a.reusable)
	}
	if v.Block.reusable != 5 {
		t.Fatalf("block.reusable = %d; want 5", v.Block.reusable)
	}
}

func TestShouldDefragmentThreshold(t *testing.T) {
	a := NewAllocator()
	if a.ShouldDefragment() {
		t.Fatalf("empty allocator should not need defragmenting")
	}

	a.reusable = int64(BlockSize/5) - 1
	if a.ShouldDefragment() {
		t.Fatalf("just under threshold must not trigger defragment")
	}

	// BlockSize/5 truncates to just below 20% of BlockSize; one more byte
	// is the smallest whole count at or above the threshold.
	a.reusable = int64(BlockSize/5) + 1
	if !a.ShouldDefragment() {
		t.Fatalf("at threshold must trigger defragment")
	}
}

// liveMap wraps a rhmap.Map[Value] as a bumpalloc.LiveValues. internal/shard
// needs no wrapper: it passes its rhmap.Map[Value] to Defragment directly,
// since that type already satisfies the interface.
type liveMap struct {
	m *rhmap.Map[Value]
}

func (l liveMap) Range(fn func(name []byte, value Value) (Value, bool)) {
	l.m.Range(fn)
}

func TestDefragmentPreservesValuesAndResetsBlocks(t *testing.T) {
	a := NewAllocator()
	m := rhmap.New[Value]()

	// Fill most of the first block with one big value, then release it so
	// the block crosses the fragmentation threshold, then add small
	// surviving values that must relocate.
	big, err := a.Allocate(bytes.NewReader(make([]byte, BlockSize-100)), BlockSize-100)
	if err != nil {
		t.Fatalf("Allocate big: %v", err)
	}
	m.Set(rhmap.Key{Name: []byte("big"), Hash: 1}, big)

	survivor, err := a.Allocate(bytes.NewReader([]byte("stay")), 4)
	if err != nil {
		t.Fatalf("Allocate survivor: %v", err)
	}
	m.Set(rhmap.Key{Name: []byte("survivor"), Hash: 2}, survivor)

	// Release "big" to generate fragmentation in block 0, then overwrite
	// its map entry so it's no longer live (simulating DEL foo / SET foo
	// after the allocation happened).
	a.Release(big)
	m.Remove(rhmap.Key{Name: []byte("big"), Hash: 1})

	if !a.ShouldDefragment() {
		t.Fatalf("expected fragmentation threshold to be crossed")
	}

	a.Defragment(liveMap{m})

	got, ok := m.Get(rhmap.Key{Name: []byte("survivor"), Hash: 2})
	if !ok {
		t.Fatalf("survivor missing after defragment")
	}
	if string(got.Data()) != "stay" {
		t.Fatalf("survivor data = %q; want stay", got.Data())
	}

	for _, b := range a.blocks {
		if b.isFragmented() {
			t.Fatalf("block still marked fragmented after defragment")
		}
	}
}

func TestStatsAccounting(t *testing.T) {
	a := NewAllocator()
	a.Allocate(bytes.NewReader([]byte("12345")), 5)
	stats := a.Stats()
	if stats.Blocks != 1 {
		t.Fatalf("Stats().Blocks = %d; want 1", stats.Blocks)
	}
	if stats.UsedBytes != 5 {
		t.Fatalf("Stats().UsedBytes = %d; want 5", stats.UsedBytes)
	}
	if stats.Capacity != BlockSize {
		t.Fatalf("Stats().Capacity = %d; want %d", stats.Capacity, BlockSize)
	}
}
