package countdown

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "flyercal/internal/log"
	"flyercal/internal/model"
)

// DefaultInterval is the tick used by live countdown displays.
const DefaultInterval = time.Second

// Ticker republishes countdowns on a fixed interval. Every Watch is its own
// cron entry; watches share the scheduler goroutine but no mutable state.
type Ticker struct {
	cron     *cron.Cron
	interval time.Duration
	now      func() time.Time
	logger   cron.Logger

	mu      sync.Mutex
	closed  bool
	watches map[cron.EntryID]*Watch
}

type TickerOption func(*Ticker)

// WithInterval sets the tick interval. cron schedules have one-second
// resolution, so anything shorter is raised to a second.
func WithInterval(d time.Duration) TickerOption {
	return func(t *Ticker) {
		if d < time.Second {
			d = time.Second
		}
		t.interval = d
	}
}

// WithClock replaces time.Now as the source of the current instant.
func WithClock(now func() time.Time) TickerOption {
	return func(t *Ticker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger routes scheduler messages and recovered job panics to l.
func WithLogger(l cron.Logger) TickerOption {
	return func(t *Ticker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTicker creates and starts a Ticker. Call Close when done.
func NewTicker(opts ...TickerOption) *Ticker {
	t := &Ticker{
		interval: DefaultInterval,
		now:      time.Now,
		logger:   appLog.CronLogger{},
		watches:  make(map[cron.EntryID]*Watch),
	}
	for _, opt := range opts {
		opt(t)
	}

	logger := t.logger
	t.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	t.cron.Start()
	return t
}

// Interval reports the effective tick interval.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Watch is one live countdown. Stop must be called when its view goes away.
type Watch struct {
	ticker *Ticker
	id     cron.EntryID

	target    time.Time
	publish   func(model.TimeLeft)
	untilZero bool

	once sync.Once
	done chan struct{}
}

// Watch publishes the countdown to target immediately and then every tick.
func (t *Ticker) Watch(target time.Time, publish func(model.TimeLeft)) *Watch {
	return t.watch(target, publish, false)
}

// WatchUntilZero is Watch, but the watch stops itself after publishing the
// first zero TimeLeft.
func (t *Ticker) WatchUntilZero(target time.Time, publish func(model.TimeLeft)) *Watch {
	return t.watch(target, publish, true)
}

func (t *Ticker) watch(target time.Time, publish func(model.TimeLeft), untilZero bool) *Watch {
	w := &Watch{
		ticker:    t,
		target:    target,
		publish:   publish,
		untilZero: untilZero,
		done:      make(chan struct{}),
	}

	// First value is synchronous so a freshly mounted view never shows blanks.
	if w.fire() {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		w.finish()
		return w
	}
	w.id = t.cron.Schedule(cron.Every(t.interval), cron.FuncJob(func() { w.fire() }))
	t.watches[w.id] = w
	appLog.Debug("countdown watch started", "entry", w.id, "target", target.Format(time.RFC3339))
	return w
}

// fire publishes one value and reports whether the watch has finished.
func (w *Watch) fire() bool {
	select {
	case <-w.done:
		return true
	default:
	}

	tl := ComputeTimeLeft(w.target, w.ticker.now())
	w.publish(tl)

	if w.untilZero && tl.IsZero() {
		w.Stop()
		return true
	}
	return false
}

// Stop removes the watch from the scheduler. It is safe to call more than
// once and from inside the publish callback.
func (w *Watch) Stop() {
	w.once.Do(func() {
		t := w.ticker
		t.mu.Lock()
		if w.id != 0 {
			t.cron.Remove(w.id)
			delete(t.watches, w.id)
		}
		t.mu.Unlock()
		close(w.done)
		appLog.Debug("countdown watch stopped", "entry", w.id)
	})
}

func (w *Watch) finish() {
	w.once.Do(func() { close(w.done) })
}

// Done is closed once the watch has stopped.
func (w *Watch) Done() <-chan struct{} {
	return w.done
}

// Active reports how many watches are currently scheduled.
func (t *Ticker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watches)
}

// Close stops every watch and the scheduler, waiting for running jobs.
func (t *Ticker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	watches := make([]*Watch, 0, len(t.watches))
	for _, w := range t.watches {
		watches = append(watches, w)
	}
	t.mu.Unlock()

	for _, w := range watches {
		w.Stop()
	}
	<-t.cron.Stop().Done()
}
