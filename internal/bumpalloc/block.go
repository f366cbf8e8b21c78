package bumpalloc

// BlockSize is the fixed capacity of every Block, in bytes.
const BlockSize = 4 << 20 // 4 MiB

// FragmentationThreshold is the fraction of BlockSize that a Block's
// reusable bytes must reach before the Block becomes eligible for
// defragmentation.
const FragmentationThreshold = 0.2

// fragmented is the sentinel value of Block.reusable meaning "this block is
// marked fragmented and draining; no new allocations may land in it until
// it is reset."
const fragmented = -1

// Block is a fixed-capacity byte buffer plus a reusable counter tracking
// bytes released by dropped or overwritten values. used is the bump
// cursor: bytes [0, used) have been written to by some past allocation,
// though not all of them are necessarily still referenced by a live Value
// (released ranges are dead weight until Defragment runs).
type Block struct {
	buf      []byte
	used     int
	reusable int // fragmented (-1) once this block is draining
}

func newBlock() *Block {
	return &Block{buf: make([]byte, BlockSize)}
}

// isFragmented reports whether the block is in the draining state.
func (b *Block) isFragmented() bool {
	return b.reusable == fragmented
}

// remaining returns the unused tail capacity, or 0 for a fragmented block
// (which never has allocatable capacity as far as callers are concerned).
func (b *Block) remaining() int {
	if b.isFragmented() {
		return 0
	}
	return BlockSize - b.used
}

// reset clears a fragmented block back to a fresh, empty, non-fragmented
// state once Defragment has relocated every value that used to live in it.
func (b *Block) reset() {
	for i := range b.buf {
		b.buf[i] = 0
	}
	b.used = 0
	b.reusable = 0
}
