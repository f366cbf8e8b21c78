package logbus

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriterDeliversRecordsToUnderlyingLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	w := New(zap.New(core))
	go w.Run()

	w.Info("hello", zap.String("k", "v"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries; want 1", len(entries))
	}
	if entries[0].Message != "hello" {
		t.Fatalf("message = %q; want hello", entries[0].Message)
	}
}

func TestWriterDropsRecordsWhenInboxIsFull(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	w := New(zap.New(core))
	// Do not start Run: every enqueue piles up in the channel buffer
	// until it's full, then starts dropping instead of blocking.
	for i := 0; i < inboxSize+10; i++ {
		w.Info("spam")
	}
	if w.Dropped() == 0 {
		t.Fatalf("expected some records to be dropped once the inbox filled")
	}

	go w.Run()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
