package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron"
)

func TestManualAfterFiresOnce(t *testing.T) {
	m := NewManual()
	fired := 0
	m.After(5*time.Second, func() { fired++ })

	m.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("fired early")
	}
	m.Advance(time.Second)
	m.Advance(10 * time.Second)
	if fired != 1 {
		t.Fatalf("expected one firing, got %d", fired)
	}
	if m.Pending() != 0 {
		t.Fatalf("expected no pending timers")
	}
}

func TestManualEveryStop(t *testing.T) {
	m := NewManual()
	ticks := 0
	var stop func()
	stop = m.Every(time.Second, func() {
		ticks++
		if ticks == 3 {
			stop()
		}
	})
	m.Advance(10 * time.Second)
	if ticks != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks)
	}
}

func TestSchedulerAfter(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var fired int32
	done := make(chan struct{})
	s.After(time.Second, func() {
		atomic.AddInt32(&fired, 1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timer did not fire")
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected a single firing")
	}
}

func TestSchedulerAfterStopped(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var fired int32
	stop := s.After(time.Second, func() { atomic.AddInt32(&fired, 1) })
	stop()
	time.Sleep(1500 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("stopped timer fired")
	}
}

func TestSchedulerAfterZeroDelay(t *testing.T) {
	s := New()
	done := make(chan struct{})
	s.After(0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("zero-delay timer did not fire")
	}
}

func TestSchedulerAfterFallsBackWhenGocronFails(t *testing.T) {
	s := New()
	s.schedule = func(d time.Duration, limit int, task func()) (*gocron.Job, error) {
		return nil, errors.New("scheduler is full")
	}

	done := make(chan struct{})
	s.After(50*time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never fired after a scheduling error")
	}

	var fired int32
	stop := s.After(100*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	stop()
	time.Sleep(300 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("stopped fallback timer fired")
	}
}

func TestSchedulerEveryFallsBackWhenGocronFails(t *testing.T) {
	s := New()
	s.schedule = func(d time.Duration, limit int, task func()) (*gocron.Job, error) {
		return nil, errors.New("scheduler is full")
	}

	var ticks int32
	stop := s.Every(20*time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
	time.Sleep(150 * time.Millisecond)
	stop()
	if atomic.LoadInt32(&ticks) == 0 {
		t.Fatalf("ticker never fired after a scheduling error")
	}
}
