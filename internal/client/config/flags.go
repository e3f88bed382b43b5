package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/sportmatch/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     API base URL
//	-w string     realtime (websocket) URL
//	-t duration   HTTP request timeout
//	-d string     SQLite DSN for the local database
//	-l string     log level (debug, info, warn, error)
//	-p string     validation policy (fail-open, fail-closed)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-t", "-d", "-l", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.RealtimeURL, "w", cfg.RealtimeURL, "realtime websocket URL")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "HTTP request timeout")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "local database DSN")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.ValidationPolicy, "p", cfg.ValidationPolicy, "validation policy on network errors")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
