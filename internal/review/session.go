package review

import (
	"errors"
	"fmt"

	"github.com/example/vocastar/internal/grading"
	"github.com/example/vocastar/pkg/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrNotStarted is returned for answers or submissions outside a running session
	ErrNotStarted = errors.New("review session not started")
	// ErrAlreadySubmitted is returned when a finished session is submitted again
	ErrAlreadySubmitted = errors.New("review session already submitted")
)

// State is the phase of a review session
type State int

const (
	Intro State = iota
	InProgress
	Complete
)

func (s State) String() string {
	switch s {
	case Intro:
		return "intro"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome summarizes a submitted session
type Outcome struct {
	Correct  int
	Total    int
	Missed   []string // ids answered wrong, in question order
	TimedOut bool
}

// Session is one review quiz: the learner sees each meaning and types the English phrase.
// It is not safe for concurrent use; the owner serializes access.
type Session struct {
	ID        string
	Config    models.ReviewConfig
	state     State
	questions []models.IdiomEntry
	drafts    map[string]string
	results   models.QuizResultMap
	remaining int
	outcome   Outcome
}

// NewSession returns a session in the intro state
func NewSession(cfg models.ReviewConfig) (*Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	return &Session{ID: id, Config: cfg, state: Intro}, nil
}

// State returns the current phase
func (s *Session) State() State { return s.state }

// Questions returns the selected idioms
func (s *Session) Questions() []models.IdiomEntry { return s.questions }

// Remaining returns the seconds left on a timed session
func (s *Session) Remaining() int { return s.remaining }

// Results returns the per-question results once submitted
func (s *Session) Results() models.QuizResultMap { return s.results }

// Outcome returns the summary of a submitted session
func (s *Session) Outcome() Outcome { return s.outcome }

// Drafts returns a copy of the answers entered so far
func (s *Session) Drafts() map[string]string {
	out := make(map[string]string, len(s.drafts))
	for k, v := range s.drafts {
		out[k] = v
	}
	return out
}

// Begin moves from intro to in-progress with the given questions
func (s *Session) Begin(questions []models.IdiomEntry) error {
	if s.state != Intro {
		return fmt.Errorf("cannot begin session in state %s", s.state)
	}
	if len(questions) == 0 {
		return ErrNoData
	}
	s.questions = questions
	s.drafts = make(map[string]string, len(questions))
	s.results = nil
	s.remaining = s.Config.TimeLimitSeconds
	s.outcome = Outcome{}
	s.state = InProgress
	return nil
}

// SetAnswer records a draft answer for a question
func (s *Session) SetAnswer(id, answer string) error {
	if s.state != InProgress {
		return ErrNotStarted
	}
	if !s.has(id) {
		return fmt.Errorf("idiom %q is not part of this session", id)
	}
	s.drafts[id] = answer
	return nil
}

// Tick counts down one second on a timed session. It reports true when time ran out.
func (s *Session) Tick() bool {
	if s.state != InProgress || !s.Config.Timed() {
		return false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	return s.remaining == 0
}

// Submit grades the drafts merged with answers and completes the session
func (s *Session) Submit(answers map[string]string, timedOut bool) (Outcome, error) {
	switch s.state {
	case Intro:
		return Outcome{}, ErrNotStarted
	case Complete:
		return Outcome{}, ErrAlreadySubmitted
	}

	for id, a := range answers {
		if s.has(id) {
			s.drafts[id] = a
		}
	}

	s.results = make(models.QuizResultMap, len(s.questions))
	out := Outcome{Total: len(s.questions), TimedOut: timedOut}
	for _, q := range s.questions {
		answer := s.drafts[q.ID]
		ok := grading.GradeDictation(q.English, answer)
		s.results[q.ID] = models.QuizResult{IsCorrect: ok, UserAnswer: answer, Attempted: true}
		if ok {
			out.Correct++
		} else {
			out.Missed = append(out.Missed, q.ID)
		}
	}
	s.outcome = out
	s.state = Complete
	return out, nil
}

// Quit abandons the session and returns to the intro
func (s *Session) Quit() {
	s.state = Intro
	s.questions = nil
	s.drafts = nil
	s.results = nil
	s.remaining = 0
	s.outcome = Outcome{}
}

func (s *Session) has(id string) bool {
	for _, q := range s.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
