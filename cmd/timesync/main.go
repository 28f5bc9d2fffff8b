package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maximewewer/timesync/internal/config"
	"github.com/maximewewer/timesync/internal/ntp"
	"github.com/maximewewer/timesync/internal/timesync"
	"github.com/maximewewer/timesync/pkg/logger"
	"github.com/maximewewer/timesync/pkg/metrics"
)

var (
	// Build information
	version = "dev"
)

const usage = `Usage: timesync [-t timeout_ms] [-r retries] [-n] [-v] [-s] [-h] [-config file] [-version] [ntp server]
  server       NTP server to query, host or host:port (default: pool.ntp.org)
  -t timeout   Timeout in ms (default: 2000)
  -r retries   Number of retries (default: 3)
  -n           Test mode (no system time adjustment)
  -v           Verbose output
  -s           Enable syslog logging
  -h           Show this help message
  -config      Path to YAML configuration file
  -version     Show version information
`

// cliOptions holds parsed command-line flags; set records which flags were
// given explicitly so only those override the loaded configuration.
type cliOptions struct {
	configFile  string
	timeoutMS   int
	retries     int
	testOnly    bool
	verbose     bool
	syslog      bool
	showVersion bool
	server      string
	set         map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes one synchronization and returns the process exit code
func run(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return int(timesync.ExitOK)
		}
		return int(timesync.ExitValidation)
	}

	if opts.showVersion {
		fmt.Fprintln(stderr, "timesync version", version)
		return int(timesync.ExitOK)
	}

	// Load configuration (before logger is initialized)
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		fmt.Fprintln(stderr, "Failed to load configuration: "+err.Error())
		return int(timesync.ExitValidation)
	}

	applyFlags(cfg, opts)
	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(stderr, "Invalid configuration: "+err.Error())
		return int(timesync.ExitValidation)
	}

	if err := logger.InitLogger(cfg.Logging.Logger()); err != nil {
		fmt.Fprintln(stderr, "Failed to initialize logger: "+err.Error())
		return int(timesync.ExitValidation)
	}
	defer logger.Close()

	logger.Startup(version, cfg.LogFields())

	var registry *metrics.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.NewRegistryWithConfig(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
		registry.MustRegister()
		registry.GetMetrics().SetBuildInfo(version)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := newRunner(cfg, registry).Run(ctx)

	if registry != nil {
		registry.GetMetrics().ObserveExit(int(out.Code), time.Now())
		if err := registry.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Error("main", "Failed to write metrics", err)
		}
	}

	return int(out.Code)
}

// newRunner wires the resolver, exchanger, querier and steerer from cfg
func newRunner(cfg *config.Config, registry *metrics.Registry) *timesync.Runner {
	dnsCache := ntp.NewDNSCache(ntp.DNSCacheConfig{
		Enabled:     cfg.Network.DNSCache.Enabled,
		TTL:         cfg.Network.DNSCache.TTL,
		DefaultPort: uint16(cfg.Network.Port),
	}, logger.For("dns"))

	var exOpts []ntp.ExchangerOption
	if cfg.Network.RateLimit.Enabled {
		exOpts = append(exOpts, ntp.WithRateLimiter(
			ntp.NewRateLimiter(cfg.Network.RateLimit.Rate, cfg.Network.RateLimit.Burst),
		))
	}

	var runOpts []timesync.Option
	if registry != nil {
		m := registry.GetMetrics()
		exOpts = append(exOpts, ntp.WithOutcomeHook(m.ObserveCandidate))
		runOpts = append(runOpts, timesync.WithRecorder(m))
	}

	exchanger := ntp.NewExchanger(dnsCache, logger.For("exchange"), exOpts...)
	querier := ntp.NewQuerier(exchanger, cfg.Query.NTP(), logger.For("query"))

	return timesync.NewRunner(
		querier,
		ntp.NewOffsetCalculator(logger.For("offset")),
		ntp.NewSteerer(ntp.SystemClock{}, ntp.EffectiveUID{}, logger.For("steer")),
		logger.For("timesync"),
		runOpts...,
	)
}

// loadConfig loads configuration based on whether a config file is specified
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		// Priority: Environment Variables > YAML File > Defaults
		return config.LoadFromYamlWithEnvOverrides(configFile)
	}
	// Priority: Environment Variables > Defaults
	return config.LoadFromEnvVarsOnly()
}

// applyFlags overrides cfg with the flags given on the command line
func applyFlags(cfg *config.Config, opts *cliOptions) {
	if opts.set["t"] {
		cfg.Query.TimeoutMS = opts.timeoutMS
	}
	if opts.set["r"] {
		cfg.Query.Retries = opts.retries
	}
	if opts.testOnly {
		cfg.Query.TestOnly = true
	}
	if opts.verbose {
		cfg.Logging.Verbose = true
	}
	if opts.syslog {
		cfg.Logging.Syslog = true
	}
	if opts.server != "" {
		cfg.Query.Server = opts.server
	}
}

// parseArgs parses flags and the server operand. Flags may follow the
// operand, and boolean short flags may be combined as in -nv.
func parseArgs(args []string, output io.Writer) (*cliOptions, error) {
	opts := &cliOptions{set: make(map[string]bool)}

	fs := flag.NewFlagSet("timesync", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { fmt.Fprint(output, usage) }

	fs.IntVar(&opts.timeoutMS, "t", ntp.DefaultTimeoutMS, "timeout in ms")
	fs.IntVar(&opts.retries, "r", ntp.DefaultRetries, "number of retries")
	fs.BoolVar(&opts.testOnly, "n", false, "test mode")
	fs.BoolVar(&opts.verbose, "v", false, "verbose output")
	fs.BoolVar(&opts.syslog, "s", false, "enable syslog logging")
	fs.StringVar(&opts.configFile, "config", "", "path to configuration file")
	fs.BoolVar(&opts.showVersion, "version", false, "show version information")

	rest := expandShortFlags(args)
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		opts.server = rest[0]
		rest = rest[1:]
	}

	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// expandShortFlags splits combined boolean flags ("-nv") into separate ones
func expandShortFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && arg[0] == '-' && arg[1] != '-' && strings.Trim(arg[1:], "nvsh") == "" {
			for _, c := range arg[1:] {
				out = append(out, "-"+string(c))
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}
