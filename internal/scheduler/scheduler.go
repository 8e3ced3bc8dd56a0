// Package scheduler runs the timers behind completion celebrations and exam countdowns.
package scheduler

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// Timers schedules callbacks. The returned stop function cancels the timer; calling it
// after the callback has fired is a no-op.
type Timers interface {
	After(d time.Duration, fn func()) (stop func())
	Every(d time.Duration, fn func()) (stop func())
}

// Scheduler is a Timers backed by a gocron scheduler
type Scheduler struct {
	scheduler *gocron.Scheduler
	// schedule registers a recurring job; replaced in tests
	schedule func(d time.Duration, limit int, task func()) (*gocron.Job, error)
}

// New creates a new scheduler instance
func New() *Scheduler {
	s := &Scheduler{scheduler: gocron.NewScheduler(time.UTC)}
	s.schedule = s.gocronJob
	return s
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() {
	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) gocronJob(d time.Duration, limit int, task func()) (*gocron.Job, error) {
	sched := s.scheduler.Every(d).WaitForSchedule()
	if limit > 0 {
		sched = sched.LimitRunsTo(limit)
	}
	return sched.Do(task)
}

// After runs fn once, d from now. When gocron cannot take the job the timer falls back to
// time.AfterFunc so fn still runs.
func (s *Scheduler) After(d time.Duration, fn func()) func() {
	var done atomic.Bool
	task := func() {
		if done.CompareAndSwap(false, true) {
			fn()
		}
	}

	var job *gocron.Job
	var err error
	if d > 0 {
		job, err = s.schedule(d, 1, task)
	}
	if d <= 0 || err != nil {
		if err != nil {
			log.Printf("Error scheduling one-shot timer, using a plain timer: %v", err)
		}
		t := time.AfterFunc(d, task)
		return func() {
			if done.CompareAndSwap(false, true) {
				t.Stop()
			}
		}
	}
	return func() {
		if done.CompareAndSwap(false, true) {
			s.scheduler.RemoveByReference(job)
		}
	}
}

// Every runs fn every d until stopped. The first run happens after one full interval.
func (s *Scheduler) Every(d time.Duration, fn func()) func() {
	var stopped atomic.Bool
	task := func() {
		if !stopped.Load() {
			fn()
		}
	}

	var job *gocron.Job
	var err error
	if d > 0 {
		job, err = s.schedule(d, 0, task)
	}
	if d <= 0 || err != nil {
		if d <= 0 {
			d = time.Second
		}
		if err != nil {
			log.Printf("Error scheduling periodic timer, using a plain ticker: %v", err)
		}
		ticker := time.NewTicker(d)
		quit := make(chan struct{})
		go func() {
			for {
				select {
				case <-ticker.C:
					task()
				case <-quit:
					return
				}
			}
		}()
		return func() {
			if stopped.CompareAndSwap(false, true) {
				ticker.Stop()
				close(quit)
			}
		}
	}
	return func() {
		if stopped.CompareAndSwap(false, true) {
			s.scheduler.RemoveByReference(job)
		}
	}
}
