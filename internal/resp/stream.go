package resp

import (
	"io"
	"unicode/utf8"

	"github.com/dreamware/kvi/internal/hashutil"
	"github.com/dreamware/kvi/internal/rhmap"
)

// Stream is a RESP3 connection's codec state: a buffered reader, a
// staging writer, and the bookkeeping needed to walk a pipeline of
// commands one bulk string at a time. A Stream is used by one goroutine at
// a time: internal/conn's connection actor, or the shard it hands the
// stream to for the duration of one command (the connection waits until
// the shard is done). It holds no locks because it needs none.
type Stream struct {
	rd *reader
	wr *writer

	pipelineRemaining int // top-level elements (commands) left unread
	cmdRemaining      int // bulk strings left in the command being read
}

// NewStream wraps rw (typically a net.Conn) in a Stream.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{rd: newReader(rw), wr: newWriter(rw)}
}

// StartPipeline reads the outer array header that begins a new pipeline:
// *n\r\n, where n is the number of commands the client is about to send
// before waiting for replies. It is called automatically by
// ReadPipelineCommand whenever the previous pipeline is exhausted, so
// callers rarely need it directly.
func (s *Stream) StartPipeline() error {
	if err := s.rd.expectByte('*'); err != nil {
		return err
	}
	n, err := s.rd.readInt()
	if err != nil {
		return err
	}
	if n < 0 {
		return HardError("the syntax is invalid")
	}
	s.pipelineRemaining = int(n)
	return nil
}

// ReadPipelineCommand reads the next command in the pipeline: an array
// header for the command itself, then its first element, the command
// name, which is classified into a CommandKind. Remaining elements
// (arguments) are read by ReadPipelineString / ReadPipelineBytes / ReadKey
// / ReadBulkStringHeader, depending on what the caller expects.
//
// If a previous command's arguments were left unread (e.g. the caller
// bailed out after a Soft error), ReadPipelineCommand does not resync for
// the caller; call SkipRemainingStrings first.
func (s *Stream) ReadPipelineCommand() (CommandKind, error) {
	for s.pipelineRemaining == 0 {
		// An empty pipeline (*0\r\n) is valid; there's simply nothing to
		// read yet. Keep starting fresh pipelines until one has at least
		// one command.
		if err := s.StartPipeline(); err != nil {
			return 0, err
		}
	}
	s.pipelineRemaining--

	if err := s.rd.expectByte('*'); err != nil {
		return 0, err
	}
	n, err := s.rd.readInt()
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, HardError("the syntax is invalid")
	}
	s.cmdRemaining = int(n) - 1

	name, err := s.readBulkStringBytes()
	if err != nil {
		return 0, err
	}
	upcaseASCII(name)
	kind, err := parseCommandName(name)
	if err != nil {
		return kind, err
	}
	return kind, nil
}

func upcaseASCII(b []byte) {
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
}

// readBulkStringBytes reads one full bulk string ($n\r\n<n bytes>\r\n) into
// a freshly allocated slice. Used internally for short, fixed-purpose
// reads (command names, key names) where there is no allocator to hand
// the bytes to.
func (s *Stream) readBulkStringBytes() ([]byte, error) {
	n, err := s.readBulkStringHeaderRaw()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := s.rd.readFull(buf); err != nil {
		return nil, err
	}
	if err := s.rd.expectCRLF(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Stream) readBulkStringHeaderRaw() (int, error) {
	if err := s.rd.expectByte('$'); err != nil {
		return 0, err
	}
	n, err := s.rd.readInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, HardError("the syntax is invalid")
	}
	return int(n), nil
}

// ReadPipelineString reads the next command argument as a bulk string and
// validates it as UTF-8, returning it as a string. Used for arguments that
// are never handed to the allocator, such as the protocol version argument
// of HELLO (internal/conn).
func (s *Stream) ReadPipelineString() (string, error) {
	b, err := s.ReadPipelineBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", HardError("the syntax is invalid")
	}
	return string(b), nil
}

// ReadPipelineBytes reads the next command argument as a bulk string and
// returns its raw bytes.
func (s *Stream) ReadPipelineBytes() ([]byte, error) {
	if s.cmdRemaining == 0 {
		return nil, HardError("wrong number of arguments")
	}
	s.cmdRemaining--
	return s.readBulkStringBytes()
}

// ReadKey reads the next command argument as a key name and hashes it with
// h, returning the rhmap.Key used for every subsequent map lookup of this
// key within the current operation.
func (s *Stream) ReadKey(h hashutil.Hasher) (rhmap.Key, error) {
	name, err := s.ReadPipelineBytes()
	if err != nil {
		return rhmap.Key{}, err
	}
	return rhmap.Key{Name: name, Hash: h.Hash(name)}, nil
}

// ReadBulkStringHeader reads just the $n\r\n header of the next command
// argument and returns n, leaving the n payload bytes and trailing \r\n
// unread. The caller (internal/shard) then reads the payload directly
// into allocator-owned memory via Stream.Read, and must call
// FinishBulkValue afterward to consume the trailing CRLF. This three-step
// split is what lets a SET's value travel straight from the socket into a
// bumpalloc.Block without resp importing bumpalloc or copying the bytes
// through an intermediate buffer.
func (s *Stream) ReadBulkStringHeader() (int, error) {
	if s.cmdRemaining == 0 {
		return 0, HardError("wrong number of arguments")
	}
	s.cmdRemaining--
	return s.readBulkStringHeaderRaw()
}

// Read implements io.Reader over the stream's underlying connection,
// draining any buffered bytes first. It is valid to call only between a
// ReadBulkStringHeader call and the matching FinishBulkValue, and reads
// exactly the bulk string's declared length; the allocator is responsible
// for stopping at that length (it is given size explicitly).
func (s *Stream) Read(p []byte) (int, error) {
	return s.rd.Read(p)
}

// FinishBulkValue consumes the trailing \r\n after a bulk string payload
// read directly via Stream.Read.
func (s *Stream) FinishBulkValue() error {
	return s.rd.expectCRLF()
}

// SkipRemainingStrings discards every argument left unread in the current
// command, resynchronizing the stream to the next command boundary after
// a Soft error (e.g. an unknown command name, or a handler that rejects
// the command after seeing only some of its arguments).
func (s *Stream) SkipRemainingStrings() error {
	for s.cmdRemaining > 0 {
		if _, err := s.ReadPipelineBytes(); err != nil {
			return err
		}
	}
	return nil
}

// WriteOK writes a +OK simple string reply.
func (s *Stream) WriteOK() { s.wr.WriteSimpleString("OK") }

// WriteNil writes a $-1\r\n nil reply.
func (s *Stream) WriteNil() { s.wr.WriteNil() }

// WriteInt writes a RESP3 integer reply.
func (s *Stream) WriteInt(v int64) { s.wr.WriteInt(v) }

// WriteBulkString writes a RESP3 bulk string reply.
func (s *Stream) WriteBulkString(p []byte) error { return s.wr.WriteBulkString(p) }

// WriteArrayHeader writes a RESP3 array header reply; the caller writes
// the elements.
func (s *Stream) WriteArrayHeader(n int) { s.wr.WriteArrayHeader(n) }

// WriteMapHeader writes a RESP3 map header reply; the caller writes the
// key/value pairs.
func (s *Stream) WriteMapHeader(n int) { s.wr.WriteMapHeader(n) }

// WriteError writes a RESP3 error reply.
func (s *Stream) WriteError(msg string) { s.wr.WriteError(msg) }

// WriteHelloResponse writes the RESP3 map HELLO replies with: server
// identity and protocol version, matching the subset of fields this
// server actually supports.
func (s *Stream) WriteHelloResponse(serverName, version string, proto int64) {
	s.wr.WriteMapHeader(3)
	s.wr.WriteBulkString([]byte("server"))
	s.wr.WriteBulkString([]byte(serverName))
	s.wr.WriteBulkString([]byte("version"))
	s.wr.WriteBulkString([]byte(version))
	s.wr.WriteBulkString([]byte("proto"))
	s.wr.WriteInt(proto)
}

// Flush writes any staged reply bytes to the underlying connection.
func (s *Stream) Flush() error { return s.wr.Flush() }
