package netsrv

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/kvi/internal/conn"
	"github.com/dreamware/kvi/internal/hashutil"
	"github.com/dreamware/kvi/internal/logbus"
	"github.com/dreamware/kvi/internal/registry"
)

// Server owns a fixed set of TCP listeners and the accepter goroutines
// serving them.
type Server struct {
	listeners []net.Listener
	accepters int
	hasher    hashutil.Hasher
	registry  *registry.Registry
	log       *logbus.Writer
	version   string
}

// New returns a Server over listeners, with accepters goroutines spawned
// per listener when Run is called.
func New(listeners []net.Listener, accepters int, hasher hashutil.Hasher, reg *registry.Registry, log *logbus.Writer, version string) *Server {
	return &Server{
		listeners: listeners,
		accepters: accepters,
		hasher:    hasher,
		registry:  reg,
		log:       log,
		version:   version,
	}
}

// Run starts accepters*len(listeners) goroutines under g and returns
// immediately; it does not block. Each accepter runs until its
// listener's Accept fails, which happens once Close closes the
// listeners. Run itself never returns a non-nil error: per-connection
// and per-accept failures are logged, not propagated, so one broken
// listener does not take down the others.
func (s *Server) Run(ctx context.Context, g *errgroup.Group) {
	for _, ln := range s.listeners {
		ln := ln
		for i := 0; i < s.accepters; i++ {
			g.Go(func() error {
				s.acceptLoop(ctx, ln)
				return nil
			})
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.log.Debug("accept failed", zap.String("listener", ln.Addr().String()), zap.Error(err))
			continue
		}
		c := conn.New(nc, s.hasher, s.registry, s.log, s.version)
		go c.Serve()
	}
}

// Close closes every listener, causing every accepter's Accept call to
// return net.ErrClosed and its loop to exit. It is the "shut the
// listening sockets" shutdown trigger from the concurrency model.
func (s *Server) Close() error {
	var firstErr error
	for _, ln := range s.listeners {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
