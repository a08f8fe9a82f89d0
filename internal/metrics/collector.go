// Package metrics exposes engine state to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abelbrown/eventfeed/internal/logging"
	"github.com/abelbrown/eventfeed/internal/poll"
)

// Source is the read side of *poll.Engine.
type Source interface {
	Snapshot() poll.Snapshot
	Stats() poll.Stats
}

var (
	upDesc = prometheus.NewDesc(
		"eventfeed_up", "1 unless the feed is in the error state.", nil, nil,
	)
	eventsDesc = prometheus.NewDesc(
		"eventfeed_events", "Events in the accumulated set.", nil, nil,
	)
	stateDesc = prometheus.NewDesc(
		"eventfeed_state", "Current view state, one series per state.", []string{"state"}, nil,
	)
	refreshingDesc = prometheus.NewDesc(
		"eventfeed_refreshing", "1 while a poll cycle is in flight.", nil, nil,
	)
	countdownDesc = prometheus.NewDesc(
		"eventfeed_countdown_seconds", "Seconds until the next scheduled poll.", nil, nil,
	)
	intervalDesc = prometheus.NewDesc(
		"eventfeed_poll_interval_seconds", "Length of the current countdown.", nil, nil,
	)
	cyclesDesc = prometheus.NewDesc(
		"eventfeed_cycles_total", "Completed poll cycles by outcome.", []string{"outcome"}, nil,
	)
	retriesDesc = prometheus.NewDesc(
		"eventfeed_retries_total", "Failed fetch attempts that were retried.", nil, nil,
	)
	mergedDesc = prometheus.NewDesc(
		"eventfeed_merged_events_total", "Events received and merged, including repeats.", nil, nil,
	)
)

var states = []poll.Status{poll.StatusLoading, poll.StatusEmpty, poll.StatusSuccess, poll.StatusError}

// Collector reads a Source at scrape time.
type Collector struct {
	src Source
}

// NewCollector creates a Collector over src.
func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- eventsDesc
	ch <- stateDesc
	ch <- refreshingDesc
	ch <- countdownDesc
	ch <- intervalDesc
	ch <- cyclesDesc
	ch <- retriesDesc
	ch <- mergedDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Snapshot()
	st := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, boolValue(s.State.Status != poll.StatusError))
	ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.GaugeValue, float64(s.Total))
	for _, status := range states {
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, boolValue(s.State.Status == status), status.String())
	}
	ch <- prometheus.MustNewConstMetric(refreshingDesc, prometheus.GaugeValue, boolValue(s.Refreshing))
	ch <- prometheus.MustNewConstMetric(countdownDesc, prometheus.GaugeValue, float64(s.Countdown))
	ch <- prometheus.MustNewConstMetric(intervalDesc, prometheus.GaugeValue, float64(s.NextPoll))

	ch <- prometheus.MustNewConstMetric(cyclesDesc, prometheus.CounterValue, float64(st.Successes-st.NotModified), "ok")
	ch <- prometheus.MustNewConstMetric(cyclesDesc, prometheus.CounterValue, float64(st.NotModified), "not_modified")
	ch <- prometheus.MustNewConstMetric(cyclesDesc, prometheus.CounterValue, float64(st.Failures), "error")
	ch <- prometheus.MustNewConstMetric(retriesDesc, prometheus.CounterValue, float64(st.Retries))
	ch <- prometheus.MustNewConstMetric(mergedDesc, prometheus.CounterValue, float64(st.Merged))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler returns the /metrics handler for a registry holding c.
func Handler(c *Collector) (http.Handler, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// Serve listens on addr and serves /metrics until ctx is done.
func Serve(ctx context.Context, addr string, c *Collector) error {
	handler, err := Handler(c)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warn("metrics server forced to shutdown", "err", err)
		}
	}()

	logging.Info("metrics listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
