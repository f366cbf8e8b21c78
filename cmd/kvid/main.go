// Command kvid is the in-memory, sharded, RESP3-subset key-value server.
// It boots the hasher, the shard set, the log bus, and one or more TCP
// accepters, then blocks until SIGINT or SIGTERM trigger a graceful
// shutdown.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/kvi/internal/hashutil"
	"github.com/dreamware/kvi/internal/logbus"
	"github.com/dreamware/kvi/internal/netsrv"
	"github.com/dreamware/kvi/internal/registry"
	"github.com/dreamware/kvi/internal/shard"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.help {
		printUsage()
		return
	}
	if cfg.version {
		fmt.Println(version)
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`kvid — in-memory sharded key-value server

  --ip strings        listen IP (repeatable, default "0.0.0.0")
  --port int          listen port (default 20252)
  --shards int        number of shards (default runtime.NumCPU())
  --accepters int     accepters per listener (default 1)
  --log string        debug|info|warn|error|none (default "info")
  --help
  --version`)
}

// run performs the whole boot/serve/shutdown lifecycle. It returns only
// on a configuration or listen failure; a clean shutdown via signal
// returns nil.
func run(cfg config) error {
	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	log := logbus.New(logger)
	go log.Run()
	defer log.Close()

	seed, err := hashutil.NewSeed()
	if err != nil {
		return fmt.Errorf("generate hash seed: %w", err)
	}
	hasher := hashutil.New(seed)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shards := make([]*shard.Shard, cfg.shards)
	for i := range shards {
		shards[i] = shard.New(i)
	}
	reg := registry.New(hasher, shards)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range shards {
		s := s
		g.Go(func() error {
			s.Run(gctx)
			return nil
		})
	}

	listeners, err := listen(cfg.ips, cfg.port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := netsrv.New(listeners, cfg.accepters, hasher, reg, log, version)
	srv.Run(gctx, g)

	log.Info("kvid started", zap.Strings("ip", cfg.ips), zap.Int("port", cfg.port), zap.Int("shards", cfg.shards), zap.Int("accepters", cfg.accepters))

	<-ctx.Done()
	log.Info("shutdown signal received")

	if err := srv.Close(); err != nil {
		log.Warn("error closing listeners", zap.Error(err))
	}

	return g.Wait()
}

// listen opens one TCP listener per ip, on the shared port. On any
// failure it closes the listeners already opened before returning.
func listen(ips []string, port int) ([]net.Listener, error) {
	listeners := make([]net.Listener, 0, len(ips))
	for _, ip := range ips {
		addr := net.JoinHostPort(ip, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, opened := range listeners {
				opened.Close()
			}
			return nil, fmt.Errorf("listen on %s: %w", addr, err)
		}
		listeners = append(listeners, ln)
	}
	return listeners, nil
}

// newLogger builds a zap.Logger for level. "none" returns a genuine
// no-op logger rather than one merely set to a level above Fatal, so
// logbus.Writer's Check call never allocates a field slice it will
// discard.
func newLogger(level string) (*zap.Logger, error) {
	if level == "none" {
		return zap.NewNop(), nil
	}

	var zapLevel zapcore.Level
	if err := zapLevel.Set(level); err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	return zapCfg.Build()
}
