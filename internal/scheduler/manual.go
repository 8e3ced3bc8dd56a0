package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Timers driven by Advance instead of the wall clock. Callbacks run on the
// goroutine calling Advance.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	timers map[int]*manualTimer
}

type manualTimer struct {
	id       int
	due      time.Duration
	interval time.Duration // 0 for one-shot
	fn       func()
}

// NewManual returns a manual clock at time zero
func NewManual() *Manual {
	return &Manual{timers: make(map[int]*manualTimer)}
}

func (m *Manual) After(d time.Duration, fn func()) func() {
	return m.add(d, 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) func() {
	return m.add(d, d, fn)
}

func (m *Manual) add(d, interval time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.timers[id] = &manualTimer{id: id, due: m.now + d, interval: interval, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

// Pending returns the number of live timers
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, firing due timers in due order
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var due []*manualTimer
		for _, t := range m.timers {
			if t.due <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			m.now = target
			m.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].due != due[j].due {
				return due[i].due < due[j].due
			}
			return due[i].id < due[j].id
		})
		next := due[0]
		m.now = next.due
		if next.interval > 0 {
			next.due += next.interval
		} else {
			delete(m.timers, next.id)
		}
		m.mu.Unlock()

		next.fn()
	}
}
