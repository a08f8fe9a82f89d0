package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/eventfeed/internal/config"
	"github.com/abelbrown/eventfeed/internal/event"
	"github.com/abelbrown/eventfeed/internal/fetch"
	"github.com/abelbrown/eventfeed/internal/filter"
	"github.com/abelbrown/eventfeed/internal/logging"
	"github.com/abelbrown/eventfeed/internal/metrics"
	"github.com/abelbrown/eventfeed/internal/otel"
	"github.com/abelbrown/eventfeed/internal/poll"
)

// controller is the part of the engine the command loop drives.
type controller interface {
	Refresh()
	ClearError()
	Snapshot() poll.Snapshot
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	kindName := fs.String("kind", "all", "Show only one kind: all, push, pr, issues, create, watch, fork")
	query := fs.String("q", "", "Show only events whose actor, repo or type contains this text")
	limit := fs.Int("limit", 30, "Print at most this many events per update (0 = no limit)")
	maxAge := fs.Duration("max-age", 0, "Hide events older than this (e.g. 2h, 0 = any age)")
	repos := fs.String("repo", "", "Show only these repositories (comma-separated owner/repo)")
	perRepo := fs.Int("per-repo", 0, "Print at most this many events per repository per update (0 = no cap)")
	envFile := fs.String("env", ".env", "Dotenv file with GITHUB_TOKEN and EVENTFEED_* settings")
	debug := fs.Bool("debug", false, "Debug-level file logging")
	metricsAddr := fs.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9120)")
	fs.Parse(args)

	kind, err := parseKindFlag(*kindName)
	if err != nil {
		return err
	}
	criteria := filter.Criteria{
		Kind:    kind,
		Query:   *query,
		MaxAge:  *maxAge,
		Repos:   splitList(*repos),
		PerRepo: *perRepo,
		Limit:   *limit,
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	otel.SetTraceEnabled(cfg.Trace)

	level := log.InfoLevel
	if *debug {
		level = log.DebugLevel
	}
	if err := logging.Init(cfg.LogDir(), level); err != nil {
		return err
	}
	defer logging.Close()

	evFile, err := os.OpenFile(cfg.EventsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer evFile.Close()

	logger := otel.NewLogger(evFile)
	defer logger.Close()
	rec := otel.NewRecorder(otel.DefaultRecentSize)
	logger.SetRecorder(rec)
	logger.Info(otel.KindStartup, "main", "watch")

	src := fetch.NewHTTPSource(cfg.HTTPTimeout,
		fetch.WithBaseURL(cfg.BaseURL),
		fetch.WithToken(cfg.Token),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithRateLimit(cfg.RequestsPerSecond, 2),
	)
	repo := fetch.NewRepository(src, fetch.NewTracker(cfg.DefaultPollInterval), logger)
	engine := poll.New(repo,
		poll.WithPollFloor(cfg.PollFloor),
		poll.WithErrorCooldown(cfg.ErrorCooldown),
		poll.WithRetry(cfg.RetryPolicy()),
		poll.WithLogger(logger),
	)
	logging.Info("watch configured", "base", cfg.BaseURL, "floor", cfg.PollFloor, "token", cfg.Token != "", "kind", kind, "query", *query, "repos", criteria.Repos)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	started := time.Now()
	if err := engine.Start(ctx); err != nil {
		return err
	}

	snaps, unsubscribe := engine.Subscribe()
	r := newRenderer(os.Stdout, criteria, time.Now)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case s, ok := <-snaps:
				if !ok {
					return nil
				}
				r.render(s)
			}
		}
	})
	g.Go(func() error {
		return readCommands(gctx, os.Stdin, os.Stdout, engine, quit)
	})
	if *metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, *metricsAddr, metrics.NewCollector(engine))
		})
	}

	err = g.Wait()
	if err != nil {
		logging.Error("watch stopped", "err", err)
	}
	unsubscribe()
	engine.Stop()

	final := engine.Snapshot()
	logger.Emit(otel.Event{Kind: otel.KindShutdown, Comp: "main", Total: final.Total, Dur: time.Since(started)})
	logger.Close() // flushes into rec; the deferred Close is a no-op
	fmt.Println(sessionSummary(summarize(logger.SessionID(), time.Since(started), final, engine.Stats(), rec, logger.Dropped())))
	return err
}

func parseKindFlag(s string) (event.Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return event.KindUntracked, nil
	}
	k, ok := event.ParseKind(s)
	if !ok {
		return event.KindUntracked, fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readCommands maps input lines to engine operations until ctx is done or
// the user quits. End of input leaves the feed running.
func readCommands(ctx context.Context, in io.Reader, out io.Writer, c controller, quit func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil // stdin closed; keep watching
				continue
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch strings.ToLower(fields[0]) {
			case "r", "refresh":
				logging.Debug("manual refresh")
				c.Refresh()
			case "c", "clear":
				c.ClearError()
			case "d", "detail":
				if len(fields) < 2 {
					fmt.Fprintln(out, "usage: d <id>")
					continue
				}
				showDetail(out, c.Snapshot(), strings.TrimPrefix(fields[1], "#"))
			case "q", "quit":
				quit()
				return nil
			}
		}
	}
}

// showDetail prints the event with the given ID from the current view.
func showDetail(out io.Writer, s poll.Snapshot, id string) {
	for _, e := range s.State.Events {
		if e.ID == id {
			fmt.Fprintln(out, detail(e, time.Now()))
			return
		}
	}
	fmt.Fprintf(out, "no event %s\n", id)
}
