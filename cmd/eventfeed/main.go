// Command eventfeed is a live terminal feed of public GitHub activity.
//
// Usage:
//
//	eventfeed               Same as 'eventfeed watch'
//	eventfeed watch         Poll /events and print new activity
//	eventfeed events        JSONL event log viewer
package main

import (
	"fmt"
	"os"
)

const usage = `eventfeed - live feed of public GitHub activity

Usage:
  eventfeed <command> [flags]

Commands:
  watch       Poll the events API and print new activity (default)
  events      JSONL event log viewer

While watching, type a letter and press enter:
  r           refresh now
  c           clear the current error
  d <id>      show one event with its actor and repo links
  q           quit

Watch flags narrow the feed: -kind, -q, -repo, -max-age, -per-repo, -limit

Environment:
  GITHUB_TOKEN           API token (raises the rate limit)
  EVENTFEED_BASE_URL     API root (default: https://api.github.com)
  EVENTFEED_POLL_FLOOR   Minimum seconds between polls (default: 10)
  EVENTFEED_RPS          Client-side request limit, 0 disables (default: 2)
  EVENTFEED_DATA_DIR     Logs and event log location (default: ~/.eventfeed)
  EVENTFEED_TRACE        Set to 1 to record countdown ticks
  EVENTFEED_CONFIG       YAML settings file (default: $EVENTFEED_DATA_DIR/config.yaml)

Metrics:
  eventfeed watch -metrics :9120 serves Prometheus metrics on /metrics

Run 'eventfeed <command> -h' for command-specific help.
`

func main() {
	cmd := "watch"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "watch":
		err = runWatch(args)
	case "events":
		err = runEvents(args)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "eventfeed: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "eventfeed: %v\n", err)
		os.Exit(1)
	}
}
