package bumpalloc

import (
	"bytes"
	"io"
)

// Allocator is an ordered list of Blocks plus a cursor onto the block
// currently accepting small allocations. The zero value is not usable;
// construct one with NewAllocator.
type Allocator struct {
	blocks       []*Block
	currentIndex int
	reusable     int64 // bytes made reusable since the last Defragment, which zeroes it
}

// NewAllocator returns an Allocator with a single empty Block, matching the
// spec's lifecycle rule that the allocator starts with one block created at
// startup.
func NewAllocator() *Allocator {
	return &Allocator{blocks: []*Block{newBlock()}}
}

// Allocate reads size bytes from r and returns the Value referencing them.
// Values larger than BlockSize are read into a freshly-owned buffer and
// returned as Large. Smaller values are served from the current block
// onward: a block with insufficient tail space has that tail folded into
// its (and the allocator's) reusable counter and is skipped for good, a
// fragmented block is skipped outright, and the first block with enough
// room receives the bytes directly with no intermediate copy. If no
// existing block can accept the allocation, a new block is appended and
// becomes current.
//
// IO errors from r propagate unchanged. Per the spec, any bytes already
// read into a block before the error remain there as unreferenced tail
// waste (no Value was produced to reference them); the next allocation
// attempt into that block sees the same remaining() and either fits or
// marks the tail reusable, same as any other allocation.
func (a *Allocator) Allocate(r io.Reader, size int) (Value, error) {
	if size > BlockSize {
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Value{}, err
		}
		return Value{Kind: Large, Bytes: buf}, nil
	}

	for {
		for a.currentIndex < len(a.blocks) {
			b := a.blocks[a.currentIndex]

			if b.isFragmented() {
				a.currentIndex++
				continue
			}
			remaining := b.remaining()
			if remaining == 0 {
				a.currentIndex++
				continue
			}
			if remaining < size {
				b.reusable += remaining
				a.reusable += int64(remaining)
				b.used = BlockSize
				a.currentIndex++
				continue
			}

			start := b.used
			if _, err := io.ReadFull(r, b.buf[start:start+size]); err != nil {
				return Value{}, err
			}
			b.used += size
			return Value{Kind: Small, Block: b, Start: start, End: start + size}, nil
		}

		a.blocks = append(a.blocks, newBlock())
	}
}

// Release returns a value's bytes to its block (and the allocator's)
// reusable counter. Large values have no effect beyond letting the owning
// buffer become garbage.
func (a *Allocator) Release(v Value) {
	if v.Kind != Small {
		return
	}
	if v.Block.isFragmented() {
		// Mid-defragment sweep; the block is about to be reset anyway.
		return
	}
	n := v.End - v.Start
	v.Block.reusable += n
	a.reusable += int64(n)
}

// ShouldDefragment reports whether accumulated reusable bytes have crossed
// FragmentationThreshold of a single block's capacity.
func (a *Allocator) ShouldDefragment() bool {
	return float64(a.reusable)/float64(BlockSize) >= FragmentationThreshold
}

// LiveValues is the narrow view Defragment needs of a shard's map: the
// ability to visit every present entry and optionally replace its value.
// internal/rhmap.Map[Value] satisfies this interface without either
// package importing the other.
type LiveValues interface {
	Range(fn func(name []byte, value Value) (newValue Value, changed bool))
}

// Defragment compacts every over-fragmented block: it marks them
// fragmented, relocates every live Small value they hold into a
// non-fragmented block, then resets them for reuse. live is walked exactly
// once. After Defragment returns, every key present in live still resolves
// to the same bytes it did before the call.
func (a *Allocator) Defragment(live LiveValues) {
	for _, b := range a.blocks {
		if b.isFragmented() {
			continue
		}
		if float64(b.reusable)/float64(BlockSize) >= FragmentationThreshold {
			b.reusable = fragmented
		}
	}

	a.currentIndex = 0

	live.Range(func(_ []byte, value Value) (Value, bool) {
		if value.Kind != Small || !value.Block.isFragmented() {
			return value, false
		}
		relocated, err := a.Allocate(bytes.NewReader(value.Data()), value.Len())
		if err != nil {
			// Allocate only fails on reader IO errors; a bytes.Reader over
			// an in-memory slice cannot fail.
			panic("bumpalloc: defragment relocation failed: " + err.Error())
		}
		return relocated, true
	})

	for _, b := range a.blocks {
		if b.isFragmented() {
			b.reset()
		}
	}

	a.currentIndex = 0
	a.reusable = 0
}

// Stats summarizes the allocator's current memory accounting.
type Stats struct {
	Blocks        int
	UsedBytes     int64
	ReusableBytes int64
	Capacity      int64
}

// Stats returns a point-in-time snapshot of the allocator's block
// accounting, the concrete form of the spec's conservation law (§8
// property 4): Capacity == UsedBytes (live + tail-unused within used) +
// unused tail beyond used, and ReusableBytes tracks the live+released
// split within UsedBytes.
func (a *Allocator) Stats() Stats {
	s := Stats{Blocks: len(a.blocks), ReusableBytes: a.reusable}
	for _, b := range a.blocks {
		s.UsedBytes += int64(b.used)
		s.Capacity += int64(BlockSize)
	}
	return s
}
