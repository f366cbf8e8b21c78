package resp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind classifies a codec error for the connection layer's disposition
// table (spec §7).
type Kind int

const (
	// Hard is a protocol-level violation: reply with -ERR, then disconnect.
	Hard Kind = iota
	// Soft is a semantic violation (e.g. unknown command): reply with
	// -ERR, then keep reading.
	Soft
	// Closed is a normal client disconnect or connection reset: terminate
	// silently, no reply.
	Closed
	// ReadWrite is an OS-level IO error: log at debug, disconnect
	// silently.
	ReadWrite
)

// Error is the error type every resp function returns; its Kind tells the
// caller how to respond.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// HardError reports a protocol-level violation.
func HardError(msg string) error { return &Error{Kind: Hard, Msg: msg} }

// SoftError reports a semantic violation the connection survives.
func SoftError(msg string) error { return &Error{Kind: Soft, Msg: msg} }

// ErrClosed is returned for EOF or a reset peer.
var ErrClosed = &Error{Kind: Closed, Msg: "connection closed"}

func readWriteError(err error) error {
	return &Error{Kind: ReadWrite, Msg: "io error", Cause: err}
}

// KindOf extracts the Kind from err, treating any error that isn't a
// *Error (e.g. a raw, unwrapped IO error) as ReadWrite.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ReadWrite
}

// translateReadErr maps a raw IO error from the underlying connection into
// the resp error taxonomy: EOF and reset/aborted connections become
// Closed, everything else becomes ReadWrite.
func translateReadErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrClosed
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) {
		return ErrClosed
	}
	return readWriteError(err)
}
