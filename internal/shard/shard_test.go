package shard

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dreamware/kvi/internal/hashutil"
	"github.com/dreamware/kvi/internal/resp"
	"github.com/dreamware/kvi/internal/rhmap"
)

// pipe is a minimal in-memory io.ReadWriter, matching the one used by
// internal/resp's own tests, so a resp.Stream can be driven without a
// real socket.
type pipe struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (p *pipe) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *pipe) Write(b []byte) (int, error) { return p.out.Write(b) }

var testHasher = hashutil.New(hashutil.Seed{K0: 11, K1: 22})

func bulk(s string) string {
	return "$" + itoa(len(s)) + "\r\n" + s + "\r\n"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// setRequest drives a resp.Stream exactly as internal/conn would for a
// pipelined "SET key value" command, returning the key and the stream
// positioned for handleSet to read the value.
func setRequest(t *testing.T, key, value string) (rhmap.Key, *resp.Stream, *bytes.Buffer) {
	t.Helper()
	in := bytes.NewBufferString("*1\r\n*3\r\n" + bulk("SET") + bulk(key) + bulk(value))
	out := &bytes.Buffer{}
	s := resp.NewStream(&pipe{in: in, out: out})

	kind, err := s.ReadPipelineCommand()
	if err != nil || kind != resp.CmdSet {
		t.Fatalf("ReadPipelineCommand: kind=%v err=%v", kind, err)
	}
	k, err := s.ReadKey(testHasher)
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	return k, s, out
}

func readRequest(t *testing.T, kind resp.CommandKind, cmdName, key string) (rhmap.Key, *resp.Stream, *bytes.Buffer) {
	t.Helper()
	in := bytes.NewBufferString("*1\r\n*2\r\n" + bulk(cmdName) + bulk(key))
	out := &bytes.Buffer{}
	s := resp.NewStream(&pipe{in: in, out: out})

	gotKind, err := s.ReadPipelineCommand()
	if err != nil || gotKind != kind {
		t.Fatalf("ReadPipelineCommand: kind=%v err=%v", gotKind, err)
	}
	k, err := s.ReadKey(testHasher)
	if err != nil {
		t.Fatalf("ReadKey: %v", err)
	}
	return k, s, out
}

func TestShardSetThenGet(t *testing.T) {
	s := New(0)

	key, stream, out := setRequest(t, "foo", "bar")
	done := make(chan error, 1)
	s.handle(Request{Kind: OpSet, Key: key, Stream: stream, Done: done})
	if err := <-done; err != nil {
		t.Fatalf("SET: %v", err)
	}
	stream.Flush()
	if got := out.String(); got != "+OK\r\n" {
		t.Fatalf("SET reply = %q; want +OK\\r\\n", got)
	}

	getKey, getStream, getOut := readRequest(t, resp.CmdGet, "GET", "foo")
	done = make(chan error, 1)
	s.handle(Request{Kind: OpGet, Key: getKey, Stream: getStream, Done: done})
	if err := <-done; err != nil {
		t.Fatalf("GET: %v", err)
	}
	if err := getStream.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := getOut.String(); got != "$3\r\nbar\r\n" {
		t.Fatalf("GET reply = %q; want $3\\r\\nbar\\r\\n", got)
	}
}

func TestShardGetAbsentWritesNil(t *testing.T) {
	s := New(0)
	key, stream, out := readRequest(t, resp.CmdGet, "GET", "missing")

	done := make(chan error, 1)
	s.handle(Request{Kind: OpGet, Key: key, Stream: stream, Done: done})
	if err := <-done; err != nil {
		t.Fatalf("GET: %v", err)
	}
	if err := stream.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := out.String(); got != "$-1\r\n" {
		t.Fatalf("GET reply = %q; want $-1\\r\\n", got)
	}
}

func TestShardSetOverwriteReleasesOldValue(t *testing.T) {
	s := New(0)

	key, stream, _ := setRequest(t, "k", "111")
	done := make(chan error, 1)
	s.handle(Request{Kind: OpSet, Key: key, Stream: stream, Done: done})
	<-done

	key2, stream2, _ := setRequest(t, "k", "22")
	done = make(chan error, 1)
	s.handle(Request{Kind: OpSet, Key: key2, Stream: stream2, Done: done})
	<-done

	stats := s.alloc.Stats()
	if stats.ReusableBytes != 3 {
		t.Fatalf("expected the 3-byte overwritten value to be reusable, got %d", stats.ReusableBytes)
	}
}

func TestShardDeleteReportsPresenceAsInteger(t *testing.T) {
	s := New(0)

	key, stream, _ := setRequest(t, "a", "1")
	done := make(chan error, 1)
	s.handle(Request{Kind: OpSet, Key: key, Stream: stream, Done: done})
	<-done

	delKey, delStream, delOut := readRequest(t, resp.CmdDel, "DEL", "a")
	done = make(chan error, 1)
	s.handle(Request{Kind: OpDel, Key: delKey, Stream: delStream, Done: done})
	<-done
	delStream.Flush()
	if got := delOut.String(); got != ":1\r\n" {
		t.Fatalf("DEL reply = %q; want :1\\r\\n", got)
	}

	delKey2, delStream2, delOut2 := readRequest(t, resp.CmdDel, "DEL", "a")
	done = make(chan error, 1)
	s.handle(Request{Kind: OpDel, Key: delKey2, Stream: delStream2, Done: done})
	<-done
	delStream2.Flush()
	if got := delOut2.String(); got != ":0\r\n" {
		t.Fatalf("second DEL reply = %q; want :0\\r\\n", got)
	}
}

func TestShardKeysChainAccumulatesAcrossShards(t *testing.T) {
	s0 := New(0)
	s1 := New(1)
	s2 := New(2)
	for _, sh := range []*Shard{s0, s1, s2} {
		go sh.Run(context.Background())
	}

	set := func(sh *Shard, name, value string) {
		key, stream, _ := setRequest(t, name, value)
		done := make(chan error, 1)
		sh.Submit(Request{Kind: OpSet, Key: key, Stream: stream, Done: done})
		if err := <-done; err != nil {
			t.Fatalf("SET %s: %v", name, err)
		}
	}
	set(s0, "foo", "1")
	set(s1, "bar", "2")
	set(s2, "baz", "3")

	out := &bytes.Buffer{}
	stream := resp.NewStream(&pipe{in: &bytes.Buffer{}, out: out})
	keysDone := make(chan [][]byte, 1)
	s0.Submit(Request{Kind: OpKeys, Stream: stream, Remaining: []*Shard{s1, s2}, KeysDone: keysDone})

	select {
	case all := <-keysDone:
		names := map[string]bool{}
		for _, n := range all {
			names[string(n)] = true
		}
		for _, want := range []string{"foo", "bar", "baz"} {
			if !names[want] {
				t.Fatalf("missing key %q in accumulated result %v", want, all)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for keys chain to complete")
	}
}

func TestShardSnapshotCountsOperations(t *testing.T) {
	s := New(0)

	key, stream, _ := setRequest(t, "x", "1")
	done := make(chan error, 1)
	s.handle(Request{Kind: OpSet, Key: key, Stream: stream, Done: done})
	<-done

	getKey, getStream, _ := readRequest(t, resp.CmdGet, "GET", "x")
	done = make(chan error, 1)
	s.handle(Request{Kind: OpGet, Key: getKey, Stream: getStream, Done: done})
	<-done

	stats := s.Snapshot()
	if stats.Sets != 1 || stats.Gets != 1 {
		t.Fatalf("Snapshot() = %+v; want one Set and one Get", stats)
	}
}

func TestShardRunSerializesRequestsFromMultipleSenders(t *testing.T) {
	s := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "key" + itoa(i)
			key, stream, _ := setRequest(t, name, "v")
			done := make(chan error, 1)
			s.Submit(Request{Kind: OpSet, Key: key, Stream: stream, Done: done})
			if err := <-done; err != nil {
				t.Errorf("SET %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	out := &bytes.Buffer{}
	stream := resp.NewStream(&pipe{in: &bytes.Buffer{}, out: out})
	keysDone := make(chan [][]byte, 1)
	s.Submit(Request{Kind: OpKeys, Stream: stream, KeysDone: keysDone})
	all := <-keysDone
	if len(all) != 10 {
		t.Fatalf("expected 10 keys after concurrent sets, got %d", len(all))
	}
}
