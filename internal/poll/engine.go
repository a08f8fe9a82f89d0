// Package poll runs the event feed: a background loop that fetches new
// events, merges them into the accumulated set and publishes view state.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/abelbrown/eventfeed/internal/event"
	"github.com/abelbrown/eventfeed/internal/fetch"
	"github.com/abelbrown/eventfeed/internal/logging"
	"github.com/abelbrown/eventfeed/internal/otel"
	"github.com/abelbrown/eventfeed/internal/retry"
)

// Defaults for Options.
const (
	DefaultPollFloor     = 10 // seconds
	DefaultErrorCooldown = 5 * time.Second
	DefaultTick          = time.Second
)

// ErrStopped is returned by Start once Stop has been called.
var ErrStopped = errors.New("poll: engine stopped")

// Fetcher performs one fetch cycle. *fetch.Repository implements it.
type Fetcher interface {
	FetchNewEvents(ctx context.Context) (fetch.Result, error)
	PollInterval() int
}

// Options tune the engine. Zero values take the defaults.
type Options struct {
	PollFloor     int           // minimum countdown, seconds
	ErrorCooldown time.Duration // wait after a failed cycle
	Tick          time.Duration // length of one countdown second
	Retry         retry.Policy
	Logger        *otel.Logger
}

// Option configures an Engine.
type Option func(*Options)

func WithPollFloor(secs int) Option            { return func(o *Options) { o.PollFloor = secs } }
func WithErrorCooldown(d time.Duration) Option { return func(o *Options) { o.ErrorCooldown = d } }
func WithTick(d time.Duration) Option          { return func(o *Options) { o.Tick = d } }
func WithRetry(p retry.Policy) Option          { return func(o *Options) { o.Retry = p } }
func WithLogger(l *otel.Logger) Option         { return func(o *Options) { o.Logger = l } }

// Engine owns the accumulated event set and the published Snapshot.
// Uses context cancellation as the only stop mechanism.
//
// Goroutine safety: mu guards set, snap, subs, inflight, stopped and the
// loop handles. Every publish happens under mu after checking the cycle's
// context, so a cancelled or stopped cycle never writes state.
type Engine struct {
	fetcher Fetcher
	opts    Options
	log     otel.Scope

	root       context.Context // cancelled by Stop; parent of Refresh cycles
	rootCancel context.CancelFunc

	mu         sync.Mutex
	set        map[string]event.Event
	snap       Snapshot
	subs       map[int]chan Snapshot
	nextSub    int
	inflight   int
	stopped    bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	wg sync.WaitGroup

	stats struct {
		successes, notModified, failures, retries, merged atomic.Uint64
	}
}

// Stats are cumulative counters since New. A cycle is counted only when its
// outcome is published, so cancelled and stopped cycles are left out.
type Stats struct {
	Successes   uint64 // cycles that fetched at least a 2xx or 304
	NotModified uint64 // of Successes, answered 304
	Failures    uint64 // cycles that ended in Error after retries
	Retries     uint64 // failed attempts that were retried
	Merged      uint64 // events received and merged, including re-received IDs
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Successes:   e.stats.successes.Load(),
		NotModified: e.stats.notModified.Load(),
		Failures:    e.stats.failures.Load(),
		Retries:     e.stats.retries.Load(),
		Merged:      e.stats.merged.Load(),
	}
}

// New creates an Engine in the Loading state. Nothing runs until Start.
func New(f Fetcher, opts ...Option) *Engine {
	o := Options{
		PollFloor:     DefaultPollFloor,
		ErrorCooldown: DefaultErrorCooldown,
		Tick:          DefaultTick,
		Retry:         retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.PollFloor < 0 {
		o.PollFloor = 0
	}
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.ErrorCooldown < 0 {
		o.ErrorCooldown = 0
	}

	root, cancel := context.WithCancel(context.Background())
	e := &Engine{
		fetcher:    f,
		opts:       o,
		root:       root,
		rootCancel: cancel,
		set:        make(map[string]event.Event),
		subs:       make(map[int]chan Snapshot),
	}
	if o.Logger != nil {
		e.log = o.Logger.Scope("poll")
	}
	next := e.target()
	e.snap = Snapshot{State: Loading(), Countdown: next, NextPoll: next}
	return e
}

// Start begins the poll loop: a cycle runs immediately, then after each
// countdown. A loop already running is cancelled and replaced.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	prevCancel, prevDone := e.loopCancel, e.loopDone
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.loopCancel, e.loopDone = cancel, done
	e.wg.Add(1)
	e.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}

	go func() {
		defer e.wg.Done()
		defer close(done)
		if prevDone != nil {
			<-prevDone
		}
		e.log.Emit(otel.Event{Kind: otel.KindEngineStart, Msg: fmt.Sprintf("floor=%ds tick=%s", e.opts.PollFloor, e.opts.Tick)})
		e.run(loopCtx)
	}()
	return nil
}

// Refresh runs one extra cycle now, alongside the loop. It does not touch
// the countdown. No-op after Stop.
func (e *Engine) Refresh() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.log.Emit(otel.Event{Kind: otel.KindRefreshStart, Trigger: "refresh"})
		e.cycle(e.root, "refresh")
	}()
}

// ClearError drops the stored error message. If the state is Error it
// becomes Success with the accumulated events, or Empty when there are none.
func (e *Engine) ClearError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.snap.ErrorMessage = ""
	if e.snap.State.Status == StatusError {
		e.setStateLocked(e.settledLocked())
	}
	e.notifyLocked()
}

// Stop cancels the loop, any countdown and in-flight refreshes, waits for
// them to exit and closes subscriber channels. Terminal and idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	loopCancel := e.loopCancel
	e.mu.Unlock()

	e.rootCancel()
	if loopCancel != nil {
		loopCancel()
	}
	e.wg.Wait()

	e.mu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	total := len(e.set)
	e.mu.Unlock()

	e.log.Emit(otel.Event{Kind: otel.KindEngineStop, Total: total})
}

// Snapshot returns the current published state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Subscribe returns a channel that receives every published Snapshot,
// starting with the current one. Slow readers see only the latest value.
// The channel is closed by cancel or by Stop.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snap

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (e *Engine) run(ctx context.Context) {
	for {
		if e.cycle(ctx, "loop") {
			if !e.countdown(ctx) {
				return
			}
			continue
		}
		if !sleep(ctx, e.opts.ErrorCooldown) {
			return
		}
	}
}

// cycle performs one fetch with retries and publishes the outcome.
// Reports whether it succeeded; false also covers cancellation.
func (e *Engine) cycle(ctx context.Context, trigger string) bool {
	start := time.Now()
	cid := uuid.NewString()[:8]
	e.begin(ctx)
	defer e.end(ctx)

	e.log.Emit(otel.Event{Kind: otel.KindPollStart, Trigger: trigger, Cycle: cid, Level: otel.LevelDebug})

	res, err := e.fetch(ctx, trigger, cid)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		msg := Message(err)
		if !e.publish(ctx, func() {
			e.stats.failures.Add(1)
			e.snap.ErrorMessage = msg
			e.setStateLocked(Failed(msg))
		}) {
			return false
		}
		e.log.Fail(otel.KindPollError, err, otel.Event{Trigger: trigger, Cycle: cid, Dur: time.Since(start), Msg: msg})
		logging.Warn("poll cycle failed", "trigger", trigger, "cycle", cid, "err", err)
		return false
	}

	var total int
	published := e.publish(ctx, func() {
		// Counted under mu with the state change: a reader that sees the
		// new state sees the counters, and a refused publish counts nothing.
		e.stats.successes.Add(1)
		if res.NotModified {
			e.stats.notModified.Add(1)
		} else {
			e.stats.merged.Add(uint64(len(res.Events)))
		}
		if !res.NotModified && len(res.Events) > 0 {
			e.set = Merge(e.set, res.Events)
			e.setStateLocked(Success(Ordered(e.set)))
		} else {
			e.setStateLocked(e.settledLocked())
		}
		e.snap.ErrorMessage = ""
		e.snap.Total = len(e.set)
		total = len(e.set)
	})
	if !published {
		return false
	}

	if res.NotModified {
		e.log.Emit(otel.Event{Kind: otel.KindPollNotModified, Trigger: trigger, Cycle: cid, Interval: res.PollInterval, Dur: time.Since(start)})
	} else {
		e.log.Emit(otel.Event{
			Kind:     otel.KindPollComplete,
			Trigger:  trigger,
			Cycle:    cid,
			Count:    len(res.Events),
			Total:    total,
			Interval: res.PollInterval,
			Dur:      time.Since(start),
		})
	}
	return true
}

// fetch runs the fetcher under the retry policy. A panic in the fetcher
// is returned as an error so it surfaces as an Error state.
func (e *Engine) fetch(ctx context.Context, trigger, cid string) (res fetch.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	policy := e.opts.Retry
	user := policy.OnRetry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.stats.retries.Add(1)
		e.log.Emit(otel.Event{
			Kind:    otel.KindPollRetry,
			Level:   otel.LevelWarn,
			Trigger: trigger,
			Cycle:   cid,
			Attempt: attempt,
			Dur:     delay,
			Err:     err.Error(),
		})
		if user != nil {
			user(attempt, delay, err)
		}
	}
	return retry.Do(ctx, policy, e.fetcher.FetchNewEvents)
}

// countdown publishes target..0 one Tick apart. Reports false when
// cancelled before reaching zero.
func (e *Engine) countdown(ctx context.Context) bool {
	target := e.target()
	for remaining := target; ; remaining-- {
		ok := e.publish(ctx, func() {
			e.snap.Countdown = remaining
			e.snap.NextPoll = target
		})
		if !ok {
			return false
		}
		e.log.Trace(otel.Event{Kind: otel.KindPollTick, Count: remaining})
		if remaining <= 0 {
			return true
		}
		if !sleep(ctx, e.opts.Tick) {
			return false
		}
	}
}

// target is the countdown length: the advised interval, never below the floor.
func (e *Engine) target() int {
	return max(e.opts.PollFloor, e.fetcher.PollInterval())
}

func (e *Engine) begin(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight++
	if e.allowedLocked(ctx) {
		e.snap.Refreshing = true
		e.notifyLocked()
	}
}

// end always settles the in-flight count so Snapshot stays truthful, but
// only notifies subscribers when the cycle may still publish.
func (e *Engine) end(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inflight--
	e.snap.Refreshing = e.inflight > 0
	if e.allowedLocked(ctx) {
		e.notifyLocked()
	}
}

// publish applies fn and notifies subscribers unless the engine is stopped
// or ctx is done.
func (e *Engine) publish(ctx context.Context, fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.allowedLocked(ctx) {
		return false
	}
	fn()
	e.notifyLocked()
	return true
}

func (e *Engine) allowedLocked(ctx context.Context) bool {
	return !e.stopped && ctx.Err() == nil
}

// settledLocked is the state for "nothing new": Success with what we have,
// or Empty when nothing has been seen.
func (e *Engine) settledLocked() State {
	if len(e.set) == 0 {
		return Empty()
	}
	if e.snap.State.Status == StatusSuccess {
		return e.snap.State
	}
	return Success(Ordered(e.set))
}

func (e *Engine) setStateLocked(s State) {
	prev := e.snap.State.Status
	e.snap.State = s
	if prev != s.Status {
		e.log.Emit(otel.Event{Kind: otel.KindStateChange, State: s.Status.String(), Msg: prev.String() + " -> " + s.Status.String()})
	}
}

// notifyLocked hands the current snapshot to every subscriber, replacing
// any value the subscriber has not read yet. All sends happen under mu.
func (e *Engine) notifyLocked() {
	for _, ch := range e.subs {
		select {
		case ch <- e.snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- e.snap:
		default:
		}
	}
}

// sleep waits d or until ctx is done. Reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
