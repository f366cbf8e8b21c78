package conn

import (
	"fmt"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/kvi/internal/hashutil"
	"github.com/dreamware/kvi/internal/logbus"
	"github.com/dreamware/kvi/internal/registry"
	"github.com/dreamware/kvi/internal/resp"
	"github.com/dreamware/kvi/internal/shard"
)

// ServerName and ProtocolVersion are the fixed identity reported in a
// HELLO reply.
const (
	ServerName      = "kvi"
	ProtocolVersion = 3
)

// Connection serves one TCP socket for its lifetime: reads pipelined
// commands, routes them to shards, writes replies. It is not safe for
// concurrent use — exactly one goroutine, spawned by
// internal/netsrv for each accepted socket, calls Serve.
type Connection struct {
	nc       net.Conn
	stream   *resp.Stream
	hasher   hashutil.Hasher
	registry *registry.Registry
	log      *logbus.Writer
	version  string
	id       uuid.UUID
}

// New wraps nc in a Connection ready to Serve. version is the server
// build version reported in the HELLO handshake reply.
func New(nc net.Conn, hasher hashutil.Hasher, reg *registry.Registry, log *logbus.Writer, version string) *Connection {
	return &Connection{
		nc:       nc,
		stream:   resp.NewStream(nc),
		hasher:   hasher,
		registry: reg,
		log:      log,
		version:  version,
		id:       uuid.New(),
	}
}

// Serve reads and answers pipelined commands until the connection is
// closed by the peer, the runtime, or an unrecoverable protocol error.
// It always closes nc before returning.
func (c *Connection) Serve() {
	defer c.nc.Close()

	for {
		kind, err := c.stream.ReadPipelineCommand()
		if err != nil {
			if !c.handleReadError(err) {
				return
			}
			continue
		}

		if err := c.dispatch(kind); err != nil {
			if !c.handleReadError(err) {
				return
			}
			continue
		}

		if err := c.stream.Flush(); err != nil {
			c.log.Debug("flush failed", zap.String("conn", c.id.String()), zap.Error(err))
			return
		}
	}
}

// handleReadError applies the disposition table to err. It returns true
// if the connection should keep reading (a Soft error), false if Serve
// should return.
func (c *Connection) handleReadError(err error) bool {
	kind := resp.KindOf(err)
	switch kind {
	case resp.Soft:
		c.stream.WriteError(err.Error())
		if skipErr := c.stream.SkipRemainingStrings(); skipErr != nil {
			c.log.Debug("failed to resync after soft error", zap.String("conn", c.id.String()), zap.Error(skipErr))
			return false
		}
		if flushErr := c.stream.Flush(); flushErr != nil {
			c.log.Debug("flush failed after soft error", zap.String("conn", c.id.String()), zap.Error(flushErr))
			return false
		}
		return true
	case resp.Hard:
		c.stream.WriteError(err.Error())
		c.stream.Flush()
		return false
	case resp.Closed:
		return false
	default: // resp.ReadWrite
		c.log.Debug("io error", zap.String("conn", c.id.String()), zap.Error(err))
		return false
	}
}

func (c *Connection) dispatch(kind resp.CommandKind) error {
	switch kind {
	case resp.CmdHello:
		return c.handleHello()
	case resp.CmdSet:
		return c.handleShardOp(shard.OpSet)
	case resp.CmdGet:
		return c.handleShardOp(shard.OpGet)
	case resp.CmdDel:
		return c.handleShardOp(shard.OpDel)
	case resp.CmdKeys:
		return c.handleKeys()
	default:
		return resp.HardError("the syntax is invalid")
	}
}

func (c *Connection) handleHello() error {
	version, err := c.stream.ReadPipelineString()
	if err != nil {
		return err
	}
	if version != "3" {
		return resp.HardError(fmt.Sprintf("unsupported protocol version '%s'", version))
	}
	c.stream.WriteHelloResponse(ServerName, c.version, ProtocolVersion)
	return nil
}

func (c *Connection) handleShardOp(kind shard.RequestKind) error {
	key, err := c.stream.ReadKey(c.hasher)
	if err != nil {
		return err
	}
	sh := c.registry.Select(key.Hash)

	done := make(chan error, 1)
	sh.Submit(shard.Request{Kind: kind, Key: key, Stream: c.stream, Done: done})
	return <-done
}

func (c *Connection) handleKeys() error {
	shards := c.registry.Shards()
	if len(shards) == 0 {
		c.stream.WriteArrayHeader(0)
		return nil
	}

	keysDone := make(chan [][]byte, 1)
	shards[0].Submit(shard.Request{
		Kind:      shard.OpKeys,
		Stream:    c.stream,
		Remaining: shards[1:],
		KeysDone:  keysDone,
	})

	all := <-keysDone
	c.stream.WriteArrayHeader(len(all))
	for _, name := range all {
		if err := c.stream.WriteBulkString(name); err != nil {
			return err
		}
	}
	return nil
}
