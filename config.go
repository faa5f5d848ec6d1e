package main

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

// Config is read from the environment first; command-line flags override it.
type Config struct {
	URL         string        `env:"URL"`
	LogLevel    string        `env:"LOG_LEVEL,default:info"`
	LogFormat   string        `env:"LOG_FORMAT,default:console"`
	LogFile     string        `env:"LOG_FILE"`
	Passive     bool          `env:"PASSIVE,default:true"`
	Verify      bool          `env:"VERIFY,default:true"`
	InsecureTLS bool          `env:"INSECURE_TLS,default:false"`
	KnownHosts  string        `env:"KNOWN_HOSTS"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT,default:30s"`
	MetricsFile string        `env:"METRICS_FILE"`
	AssumeYes   bool          `env:"ASSUME_YES,default:false"`
}

// envPrefix is prepended to every Config key when reading the environment.
const envPrefix = "XFER_"

// loadConfig reads the environment and then parses args on top of it. The
// remaining positional arguments are returned alongside.
func loadConfig(args []string, usage io.Writer) (*Config, []string, error) {
	cfg := &Config{}
	if err := config.Load(cfg, config.LoadOptions{Prefix: envPrefix}); err != nil {
		return nil, nil, fmt.Errorf("failed to load environment: %w", err)
	}

	fs := flag.NewFlagSet("xferkit", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.StringVar(&cfg.URL, "url", cfg.URL, "Session URL (ftp://, ftps://, sftp://user@host:port/base)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (console, json)")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file instead of stderr")
	fs.BoolVar(&cfg.Passive, "passive", cfg.Passive, "Use passive data connections for FTP")
	fs.BoolVar(&cfg.Verify, "verify", cfg.Verify, "Verify transfers with remote digests when the server supports them")
	fs.BoolVar(&cfg.InsecureTLS, "insecure-tls", cfg.InsecureTLS, "Skip TLS certificate verification for ftps")
	fs.StringVar(&cfg.KnownHosts, "known-hosts", cfg.KnownHosts, "known_hosts file for sftp host key checks")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Connection establishment timeout")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write transfer counters to this file on exit")
	fs.BoolVar(&cfg.AssumeYes, "y", cfg.AssumeYes, "Do not ask for confirmation")
	fs.Usage = func() {
		fmt.Fprintln(usage, "Usage: xferkit [flags] <command> [args]")
		fmt.Fprintln(usage, "\nCommands:")
		for _, c := range commands {
			fmt.Fprintf(usage, "  %-8s %s\n", c.name, c.help)
		}
		fmt.Fprintln(usage, "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}
