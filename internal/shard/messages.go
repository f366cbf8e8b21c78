package shard

import (
	"github.com/dreamware/kvi/internal/resp"
	"github.com/dreamware/kvi/internal/rhmap"
)

// RequestKind identifies which of the four shard operations a Request
// carries.
type RequestKind int

const (
	OpSet RequestKind = iota
	OpGet
	OpDel
	OpKeys
)

// Request is the single message type a Shard's inbox accepts. Exactly
// one of the field groups below is populated, depending on Kind:
//
//   - OpSet, OpGet, OpDel: Key and Stream are set; Done receives the
//     single error from the operation (nil on success).
//   - OpKeys: Stream, Remaining, Acc, and KeysDone are set; Key and Done
//     are unused. Remaining is the snapshot of shards still owed a turn
//     in the chain, Acc accumulates key names as the request is handed
//     down the chain, and the shard that finds Remaining empty sends the
//     final accumulated slice on KeysDone.
type Request struct {
	Kind   RequestKind
	Key    rhmap.Key
	Stream *resp.Stream
	Done   chan error

	Remaining []*Shard
	Acc       [][]byte
	KeysDone  chan [][]byte
}
