package countdown_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyercal/internal/countdown"
	"flyercal/internal/model"
)

type recorder struct {
	mu     sync.Mutex
	values []model.TimeLeft
}

func (r *recorder) publish(tl model.TimeLeft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, tl)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

func (r *recorder) last() model.TimeLeft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[len(r.values)-1]
}

func TestWatchPublishesImmediatelyAndOnTick(t *testing.T) {
	now := time.Date(2025, 11, 28, 17, 0, 0, 0, time.UTC)
	ticker := countdown.NewTicker(countdown.WithClock(func() time.Time { return now }))
	defer ticker.Close()

	rec := &recorder{}
	w := ticker.Watch(now.Add(24*time.Hour), rec.publish)
	defer w.Stop()

	require.Equal(t, 1, rec.count(), "first value is published synchronously")
	assert.Equal(t, model.TimeLeft{Days: 1}, rec.last())
	assert.Equal(t, 1, ticker.Active())

	assert.Eventually(t, func() bool { return rec.count() >= 2 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, model.TimeLeft{Days: 1}, rec.last())
}

func TestWatchStop(t *testing.T) {
	ticker := countdown.NewTicker()
	defer ticker.Close()

	rec := &recorder{}
	w := ticker.Watch(time.Now().Add(time.Hour), rec.publish)
	w.Stop()
	w.Stop()

	select {
	case <-w.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	assert.Equal(t, 0, ticker.Active())

	before := rec.count()
	time.Sleep(1500 * time.Millisecond)
	assert.LessOrEqual(t, rec.count(), before+1)
}

func TestWatchUntilZeroPastTarget(t *testing.T) {
	ticker := countdown.NewTicker()
	defer ticker.Close()

	rec := &recorder{}
	w := ticker.WatchUntilZero(time.Now().Add(-time.Minute), rec.publish)

	<-w.Done()
	assert.Equal(t, 1, rec.count())
	assert.True(t, rec.last().IsZero())
	assert.Equal(t, 0, ticker.Active())
}

func TestWatchUntilZeroReachesTarget(t *testing.T) {
	base := time.Date(2025, 11, 29, 19, 59, 58, 0, time.UTC)
	var ticks atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)-1) * time.Second)
	}

	ticker := countdown.NewTicker(countdown.WithClock(clock))
	defer ticker.Close()

	rec := &recorder{}
	w := ticker.WatchUntilZero(base.Add(2*time.Second), rec.publish)

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop at zero")
	}
	assert.True(t, rec.last().IsZero())
	assert.Equal(t, 3, rec.count())
}

func TestIndependentWatchesAndClose(t *testing.T) {
	ticker := countdown.NewTicker(countdown.WithInterval(10 * time.Millisecond))
	assert.Equal(t, time.Second, ticker.Interval())

	now := time.Now()
	a, b := &recorder{}, &recorder{}
	wa := ticker.Watch(now.Add(time.Hour), a.publish)
	wb := ticker.Watch(now.Add(48*time.Hour), b.publish)
	assert.Equal(t, 2, ticker.Active())

	wa.Stop()
	assert.Equal(t, 1, ticker.Active())
	assert.Equal(t, 1, b.last().Days)

	ticker.Close()
	ticker.Close()
	assert.Equal(t, 0, ticker.Active())
	<-wb.Done()

	// Watches created after Close finish immediately.
	late := ticker.Watch(now.Add(time.Hour), a.publish)
	<-late.Done()
}

type panicLog struct {
	errors atomic.Int32
}

func (l *panicLog) Info(string, ...any) {}

func (l *panicLog) Error(error, string, ...any) { l.errors.Add(1) }

func TestTickRecoversPanickingPublisher(t *testing.T) {
	logger := &panicLog{}
	ticker := countdown.NewTicker(countdown.WithLogger(logger))
	defer ticker.Close()

	var calls atomic.Int32
	w := ticker.Watch(time.Now().Add(time.Hour), func(model.TimeLeft) {
		if calls.Add(1) > 1 {
			panic("display went away")
		}
	})
	defer w.Stop()

	assert.Eventually(t, func() bool { return logger.errors.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, ticker.Active())
}
