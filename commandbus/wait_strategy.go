package commandbus

import (
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	yieldingSpinTries  = 100
	sleepingSpinTries  = 200
	sleepingYieldTries = 100
	defaultSleepPeriod = 100 * time.Microsecond
)

// WaitStrategy decides how pipeline stages and producers wait for a sequence to become available.
type WaitStrategy interface {
	// WaitFor returns once available() >= sequence, with the value of available(),
	// or ErrAlerted once alerted() reports true.
	WaitFor(sequence int64, available func() int64, alerted func() bool) (int64, error)

	// SignalAllWhenBlocking wakes up waiters after a cursor moved.
	SignalAllWhenBlocking()
}

// BlockingWait parks waiters on a condition variable. It is the default and the most CPU friendly.
func BlockingWait() WaitStrategy {
	strategy := &blockingWaitStrategy{}
	strategy.cond = sync.NewCond(&strategy.mu)

	return strategy
}

// BusySpinWait spins without yielding. Lowest latency, burns one core per waiting goroutine.
func BusySpinWait() WaitStrategy {
	return busySpinWaitStrategy{}
}

// YieldingWait spins a bit, then yields the processor between checks.
func YieldingWait() WaitStrategy {
	return yieldingWaitStrategy{}
}

// SleepingWait spins, then yields, then sleeps for the given period between checks.
// A non-positive period uses 100µs.
func SleepingWait(period time.Duration) WaitStrategy {
	if period <= 0 {
		period = defaultSleepPeriod
	}

	return sleepingWaitStrategy{period: period}
}

// ParseWaitStrategy maps a configuration name to a WaitStrategy:
// "blocking", "busyspin", "yielding" or "sleeping".
func ParseWaitStrategy(name string, sleepPeriod time.Duration) (WaitStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "blocking":
		return BlockingWait(), nil
	case "busyspin", "busy-spin", "spin":
		return BusySpinWait(), nil
	case "yielding", "yield":
		return YieldingWait(), nil
	case "sleeping", "sleep":
		return SleepingWait(sleepPeriod), nil
	default:
		return nil, errors.Join(ErrUnknownWaitStrategy, errors.New(name))
	}
}

type blockingWaitStrategy struct {
	mu      sync.Mutex
	cond    *sync.Cond
	waiters atomic.Int32
}

func (s *blockingWaitStrategy) WaitFor(sequence int64, available func() int64, alerted func() bool) (int64, error) {
	if value := available(); value >= sequence {
		return value, nil
	}

	s.waiters.Add(1)
	defer s.waiters.Add(-1)

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if value := available(); value >= sequence {
			return value, nil
		}

		if alerted() {
			return 0, ErrAlerted
		}

		s.cond.Wait()
	}
}

func (s *blockingWaitStrategy) SignalAllWhenBlocking() {
	if s.waiters.Load() == 0 {
		return
	}

	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

type busySpinWaitStrategy struct{}

func (busySpinWaitStrategy) WaitFor(sequence int64, available func() int64, alerted func() bool) (int64, error) {
	for {
		if value := available(); value >= sequence {
			return value, nil
		}

		if alerted() {
			return 0, ErrAlerted
		}
	}
}

func (busySpinWaitStrategy) SignalAllWhenBlocking() {}

type yieldingWaitStrategy struct{}

func (yieldingWaitStrategy) WaitFor(sequence int64, available func() int64, alerted func() bool) (int64, error) {
	for counter := yieldingSpinTries; ; {
		if value := available(); value >= sequence {
			return value, nil
		}

		if alerted() {
			return 0, ErrAlerted
		}

		if counter > 0 {
			counter--
			continue
		}

		runtime.Gosched()
	}
}

func (yieldingWaitStrategy) SignalAllWhenBlocking() {}

type sleepingWaitStrategy struct {
	period time.Duration
}

func (s sleepingWaitStrategy) WaitFor(sequence int64, available func() int64, alerted func() bool) (int64, error) {
	for counter := sleepingSpinTries + sleepingYieldTries; ; {
		if value := available(); value >= sequence {
			return value, nil
		}

		if alerted() {
			return 0, ErrAlerted
		}

		switch {
		case counter > sleepingYieldTries:
			counter--
		case counter > 0:
			counter--
			runtime.Gosched()
		default:
			time.Sleep(s.period)
		}
	}
}

func (sleepingWaitStrategy) SignalAllWhenBlocking() {}
