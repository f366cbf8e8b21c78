package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/pflag"
)

// config holds the validated command-line configuration for one kvid
// process. It is populated once by parseConfig and never mutated
// afterward.
type config struct {
	ips       []string
	port      int
	shards    int
	accepters int
	logLevel  string

	help    bool
	version bool
}

// parseConfig parses args (normally os.Args[1:]) into a config and
// validates it. It mirrors the teacher's mustGetenv/getenv pattern of
// centralizing configuration acquisition in one place, but pulls from
// flags instead of the environment.
func parseConfig(args []string) (config, error) {
	fs := pflag.NewFlagSet("kvid", pflag.ContinueOnError)
	fs.Usage = func() {}

	cfg := config{}
	fs.StringArrayVar(&cfg.ips, "ip", []string{"0.0.0.0"}, "listen IP (repeatable)")
	fs.IntVar(&cfg.port, "port", 20252, "listen port")
	fs.IntVar(&cfg.shards, "shards", runtime.NumCPU(), "number of shards")
	fs.IntVar(&cfg.accepters, "accepters", 1, "accepters per listener")
	fs.StringVar(&cfg.logLevel, "log", "info", "debug|info|warn|error|none")
	fs.BoolVar(&cfg.help, "help", false, "print usage and exit")
	fs.BoolVar(&cfg.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if cfg.help || cfg.version {
		return cfg, nil
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

// validate checks the parsed configuration for the constraints
// spec.md §6 imposes: every numeric flag must be strictly positive, and
// the log level must be one of the five recognized names.
func (c config) validate() error {
	if len(c.ips) == 0 {
		return fmt.Errorf("at least one --ip is required")
	}
	if c.port <= 0 {
		return fmt.Errorf("--port must be strictly positive, got %d", c.port)
	}
	if c.shards <= 0 {
		return fmt.Errorf("--shards must be strictly positive, got %d", c.shards)
	}
	if c.accepters <= 0 {
		return fmt.Errorf("--accepters must be strictly positive, got %d", c.accepters)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error", "none":
	default:
		return fmt.Errorf("--log must be one of debug|info|warn|error|none, got %q", c.logLevel)
	}
	return nil
}
