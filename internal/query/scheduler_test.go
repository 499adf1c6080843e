package query

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// manualScheduler fires callbacks against a simulated clock advanced by tests.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	interval time.Duration
	next     time.Duration
	fn       func()
	stopped  bool
}

func (s *manualScheduler) Every(interval time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{interval: interval, next: s.now + interval, fn: fn}
	s.timers = append(s.timers, t)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t.stopped = true
	}
}

// Advance moves the clock forward by d, firing due callbacks in time order.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due *manualTimer
		for _, t := range s.timers {
			if t.stopped || t.next > target {
				continue
			}
			if due == nil || t.next < due.next {
				due = t
			}
		}
		if due == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = due.next
		due.next += due.interval
		fn := due.fn
		s.mu.Unlock()

		fn()
	}
}

func (s *manualScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

func TestManualScheduler(t *testing.T) {
	s := &manualScheduler{}
	var fired []time.Duration
	stop := s.Every(5*time.Second, func() { fired = append(fired, s.now) })

	s.Advance(12 * time.Second)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, fired)

	stop()
	s.Advance(time.Minute)
	assert.Len(t, fired, 2)
	assert.Zero(t, s.active())
}

func TestTickerScheduler(t *testing.T) {
	var ticks atomic.Int32
	stop := TickerScheduler{}.Every(5*time.Millisecond, func() { ticks.Add(1) })

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	stop()
	stop()
	time.Sleep(20 * time.Millisecond)
	settled := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load())
}
