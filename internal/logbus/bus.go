package logbus

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// inboxSize bounds how many unwritten log records the bus holds before
// it starts dropping. Sized generously for bursty connection churn
// without letting a slow sink (or a stalled disk) build unbounded
// memory.
const inboxSize = 4096

type record struct {
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

// Writer is the LogWriter task. The zero value is not usable; construct
// one with New and call Run in its own goroutine.
type Writer struct {
	logger  *zap.Logger
	inbox   chan record
	dropped uint64
	wg      sync.WaitGroup
}

// New wraps logger behind an async, bounded-channel actor. Exactly one
// goroutine must call Run on the returned Writer.
func New(logger *zap.Logger) *Writer {
	w := &Writer{logger: logger, inbox: make(chan record, inboxSize)}
	w.wg.Add(1)
	return w
}

// Run drains the inbox until it is closed by Close. It is meant to run
// in its own goroutine for the life of the process.
func (w *Writer) Run() {
	defer w.wg.Done()
	for rec := range w.inbox {
		if ce := w.logger.Check(rec.level, rec.msg); ce != nil {
			ce.Write(rec.fields...)
		}
	}
}

func (w *Writer) enqueue(level zapcore.Level, msg string, fields ...zap.Field) {
	select {
	case w.inbox <- record{level: level, msg: msg, fields: fields}:
	default:
		atomic.AddUint64(&w.dropped, 1)
	}
}

// Debug enqueues a debug-level record, fire-and-forget.
func (w *Writer) Debug(msg string, fields ...zap.Field) { w.enqueue(zapcore.DebugLevel, msg, fields...) }

// Info enqueues an info-level record, fire-and-forget.
func (w *Writer) Info(msg string, fields ...zap.Field) { w.enqueue(zapcore.InfoLevel, msg, fields...) }

// Warn enqueues a warn-level record, fire-and-forget.
func (w *Writer) Warn(msg string, fields ...zap.Field) { w.enqueue(zapcore.WarnLevel, msg, fields...) }

// Error enqueues an error-level record, fire-and-forget.
func (w *Writer) Error(msg string, fields ...zap.Field) { w.enqueue(zapcore.ErrorLevel, msg, fields...) }

// Dropped returns the cumulative count of records discarded because the
// inbox was full.
func (w *Writer) Dropped() uint64 {
	return atomic.LoadUint64(&w.dropped)
}

// Close stops accepting new records, waits for the inbox to drain, and
// flushes the underlying logger. It is the "waiting for the log writer
// to drain" step of the shutdown sequence.
func (w *Writer) Close() error {
	close(w.inbox)
	w.wg.Wait()
	return w.logger.Sync()
}
