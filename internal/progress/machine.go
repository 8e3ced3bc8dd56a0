// Package progress is the per-learner state machine: studying a day, passing its two quizzes,
// unlocking the next day, review-week sessions, navigation and favorites.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/example/vocastar/internal/curriculum"
	"github.com/example/vocastar/internal/grading"
	"github.com/example/vocastar/internal/review"
	"github.com/example/vocastar/internal/scheduler"
	"github.com/example/vocastar/pkg/models"
)

var (
	// ErrStudyIncomplete is returned for quiz submissions before the study step is done
	ErrStudyIncomplete = errors.New("finish studying the day before taking its quizzes")
	// ErrReviewWeek is returned for day-list operations on a review week
	ErrReviewWeek = errors.New("review weeks have no fixed day list")
	// ErrNotReviewWeek is returned for review operations outside a review week
	ErrNotReviewWeek = errors.New("current week is not a review week")
	// ErrSessionClosed is returned for changes reaching a machine after Reset
	ErrSessionClosed = errors.New("learner session has ended")
)

// Step is the phase of the study flow for the current day
type Step int

const (
	StepStudy Step = iota
	StepMeaning
	StepDictation
)

func (s Step) String() string {
	switch s {
	case StepStudy:
		return "study"
	case StepMeaning:
		return "meaning"
	case StepDictation:
		return "dictation"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Saver persists progress after each mutation
type Saver interface {
	Save(ctx context.Context, userID string, p *models.UserProgress) error
}

// EventKind names asynchronous happenings a front end may want to announce
type EventKind int

const (
	// EventUnlocked fires when the celebration window ends and the next day opens
	EventUnlocked EventKind = iota
	// EventReviewTimedOut fires when a timed review is submitted by its countdown
	EventReviewTimedOut
)

// Event is delivered to Options.Notify from timer goroutines
type Event struct {
	Kind     EventKind
	UserID   string
	Position models.Position // newly unlocked position for EventUnlocked
	Review   *ReviewReport   // for EventReviewTimedOut
}

// Options configures a Machine
type Options struct {
	Timers            scheduler.Timers
	Grader            *grading.MeaningGrader
	CompletionBonus   int
	PointsPerAnswer   int
	CelebrationWindow time.Duration
	Rand              *rand.Rand
	Notify            func(Event)
}

// Machine owns one learner's progress. All methods are safe for concurrent use; timer
// callbacks take the same lock.
type Machine struct {
	mu     sync.Mutex
	userID string
	cur    *curriculum.Store
	saver  Saver
	opts   Options

	p    *models.UserProgress
	step Step

	celebrating     bool
	celebrationGen  int
	pendingUnlock   models.Position
	stopCelebration func()

	session       *review.Session
	stopCountdown func()

	// closed is set by Reset; a closed machine never writes its record again
	closed bool
}

// New creates a machine for userID starting from p
func New(userID string, p *models.UserProgress, cur *curriculum.Store, saver Saver, opts Options) *Machine {
	if opts.Grader == nil {
		opts.Grader = grading.NewMeaningGrader(nil)
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if p == nil {
		p = models.NewUserProgress()
	}
	return &Machine{userID: userID, cur: cur, saver: saver, opts: opts, p: p}
}

// UserID returns the learner id
func (m *Machine) UserID() string {
	return m.userID
}

// Snapshot returns a copy of the progress
func (m *Machine) Snapshot() *models.UserProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p.Clone()
}

// Celebrating reports whether a completion window is running
func (m *Machine) Celebrating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.celebrating
}

// Levels lists every unlocked position, newest first
func (m *Machine) Levels() []models.Position {
	m.mu.Lock()
	max := m.p.MaxUnlocked
	m.mu.Unlock()

	var levels []models.Position
	for w := max.Week; w >= 1; w-- {
		lastDay := models.DaysPerWeek
		if w == max.Week {
			lastDay = max.Day
		}
		for d := lastDay; d >= 1; d-- {
			levels = append(levels, models.Position{Week: w, Day: d})
		}
	}
	return levels
}

// Navigate moves to p when it is unlocked. Locked positions are ignored and report false.
// Moving resets the study flow and abandons any review session.
func (m *Machine) Navigate(ctx context.Context, p models.Position) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !p.Valid() || !p.AtMost(m.p.MaxUnlocked) {
		return false, nil
	}
	m.p.Current = p
	m.step = StepStudy
	m.dropSessionLocked()
	return true, m.saveLocked(ctx)
}

// ToggleFavorite flips id in the favorites and reports whether it is now a favorite
func (m *Machine) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if _, ok := m.cur.Get(id); !ok {
		return false, fmt.Errorf("unknown idiom %q", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fav := m.p.ToggleFavorite(id)
	return fav, m.saveLocked(ctx)
}

// Favorites resolves the favorite ids in curriculum order
func (m *Machine) Favorites() []models.IdiomEntry {
	m.mu.Lock()
	ids := append([]string{}, m.p.Favorites...)
	m.mu.Unlock()
	return m.cur.ByIDs(ids)
}

// Edit applies an outside change, such as an admin edit, to the live progress and saves it.
// Moving the current position restarts the study flow; moving the unlock ceiling cancels an
// unlock still waiting on a celebration.
func (m *Machine) Edit(ctx context.Context, fn func(*models.UserProgress)) (*models.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrSessionClosed
	}

	current, maxUnlocked := m.p.Current, m.p.MaxUnlocked
	fn(m.p)
	if m.p.Current != current {
		m.step = StepStudy
		m.dropSessionLocked()
	}
	if m.p.MaxUnlocked != maxUnlocked && m.celebrating {
		m.stopCelebration()
		m.stopCelebration = nil
		m.celebrating = false
		m.celebrationGen++
	}
	if err := m.saveLocked(ctx); err != nil {
		return nil, err
	}
	return m.p.Clone(), nil
}

// Reset applies any unlock still waiting on a celebration, saves, and returns the machine to
// new-learner defaults. The machine is closed afterwards: work still in flight, such as a meaning
// quiz waiting on the judge, can no longer overwrite the stored record.
func (m *Machine) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.celebrating {
		m.stopCelebration()
		m.applyUnlockLocked()
		err = m.saveLocked(ctx)
	}
	m.dropSessionLocked()
	m.p = models.NewUserProgress()
	m.step = StepStudy
	m.closed = true
	return err
}

func (m *Machine) saveLocked(ctx context.Context) error {
	if m.closed {
		return ErrSessionClosed
	}
	if m.saver == nil {
		return nil
	}
	if err := m.saver.Save(ctx, m.userID, m.p); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// beginCelebrationLocked awards points and schedules the unlock of the day after current.
// It does nothing when the learner is revisiting an old day or a window is already open.
func (m *Machine) beginCelebrationLocked(points int) (int, bool) {
	if m.celebrating || m.p.Current != m.p.MaxUnlocked {
		return 0, false
	}
	m.p.Score += points
	m.celebrating = true
	m.pendingUnlock = m.p.Current.Next()
	m.celebrationGen++
	gen := m.celebrationGen
	m.stopCelebration = m.opts.Timers.After(m.opts.CelebrationWindow, func() { m.finishCelebration(gen) })
	log.Printf("%s completed week %d day %d, awarded %d", m.userID, m.p.Current.Week, m.p.Current.Day, points)
	return points, true
}

func (m *Machine) finishCelebration(gen int) {
	m.mu.Lock()
	if !m.celebrating || gen != m.celebrationGen {
		m.mu.Unlock()
		return
	}
	unlocked := m.applyUnlockLocked()
	if err := m.saveLocked(context.Background()); err != nil {
		log.Printf("Error saving unlock for %s: %v", m.userID, err)
	}
	notify := m.opts.Notify
	m.mu.Unlock()

	if notify != nil {
		notify(Event{Kind: EventUnlocked, UserID: m.userID, Position: unlocked})
	}
}

func (m *Machine) applyUnlockLocked() models.Position {
	m.celebrating = false
	m.stopCelebration = nil
	if m.p.MaxUnlocked.Before(m.pendingUnlock) {
		m.p.MaxUnlocked = m.pendingUnlock
	}
	return m.p.MaxUnlocked
}
