package progress

import (
	"context"
	"log"
	"time"

	"github.com/example/vocastar/internal/curriculum"
	"github.com/example/vocastar/internal/review"
	"github.com/example/vocastar/pkg/models"
)

// ReviewQuestion is shown as its meaning; the learner answers with the English phrase
type ReviewQuestion struct {
	ID      string `json:"id"`
	Meaning string `json:"meaning"`
}

// ReviewView describes the review session of the current review-week day
type ReviewView struct {
	SessionID string               `json:"sessionId,omitempty"`
	Config    models.ReviewConfig  `json:"config"`
	State     string               `json:"state"`
	Questions []ReviewQuestion     `json:"questions,omitempty"`
	Drafts    map[string]string    `json:"drafts,omitempty"`
	Remaining int                  `json:"remainingSeconds,omitempty"`
	Results   models.QuizResultMap `json:"results,omitempty"`
}

// ReviewReport is the outcome of a submitted review
type ReviewReport struct {
	Outcome review.Outcome       `json:"outcome"`
	Results models.QuizResultMap `json:"results"`
	Awarded int                  `json:"awarded"`
}

// Review returns the session view, in the intro state when none is running
func (m *Machine) Review() (ReviewView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos := m.p.Current
	if !curriculum.IsReviewWeek(pos.Week) {
		return ReviewView{}, ErrNotReviewWeek
	}
	if m.session == nil {
		return ReviewView{Config: review.DeriveConfig(pos.Week, pos.Day), State: review.Intro.String()}, nil
	}
	return viewOf(m.session), nil
}

// StartReview draws the questions of the current review-week day and starts the session,
// with a once-per-second countdown when the day is timed
func (m *Machine) StartReview() (ReviewView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.p.Current
	if !curriculum.IsReviewWeek(pos.Week) {
		return ReviewView{}, ErrNotReviewWeek
	}
	cfg := review.DeriveConfig(pos.Week, pos.Day)
	questions, err := review.Select(cfg, m.cur, m.opts.Rand)
	if err != nil {
		return ReviewView{}, err
	}

	m.dropSessionLocked()
	sess, err := review.NewSession(cfg)
	if err != nil {
		return ReviewView{}, err
	}
	if err := sess.Begin(questions); err != nil {
		return ReviewView{}, err
	}
	m.session = sess
	if cfg.Timed() {
		id := sess.ID
		m.stopCountdown = m.opts.Timers.Every(time.Second, func() { m.tick(id) })
	}
	log.Printf("%s started review %q with %d questions", m.userID, cfg.Title, len(questions))
	return viewOf(sess), nil
}

// SetReviewAnswer stores a draft answer
func (m *Machine) SetReviewAnswer(id, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return review.ErrNotStarted
	}
	return m.session.SetAnswer(id, answer)
}

// SubmitReview grades the session. Missed idioms become favorites; completion awards points
// and unlocks the next day when the learner is at the unlock ceiling.
func (m *Machine) SubmitReview(ctx context.Context, answers map[string]string) (ReviewReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitReviewLocked(ctx, answers, false)
}

// QuitReview abandons the running session and returns to the intro
func (m *Machine) QuitReview() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropSessionLocked()
}

func (m *Machine) submitReviewLocked(ctx context.Context, answers map[string]string, timedOut bool) (ReviewReport, error) {
	if m.session == nil {
		return ReviewReport{}, review.ErrNotStarted
	}
	out, err := m.session.Submit(answers, timedOut)
	if err != nil {
		return ReviewReport{}, err
	}
	m.stopCountdownLocked()

	for _, id := range out.Missed {
		m.p.AddFavorite(id)
	}
	report := ReviewReport{Outcome: out, Results: m.session.Results()}
	points := review.Award(m.session.Config, out.Correct, m.opts.CompletionBonus, m.opts.PointsPerAnswer)
	report.Awarded, _ = m.beginCelebrationLocked(points)
	return report, m.saveLocked(ctx)
}

func (m *Machine) tick(sessionID string) {
	m.mu.Lock()
	if m.session == nil || m.session.ID != sessionID || m.session.State() != review.InProgress {
		m.mu.Unlock()
		return
	}
	if !m.session.Tick() {
		m.mu.Unlock()
		return
	}
	report, err := m.submitReviewLocked(context.Background(), nil, true)
	notify := m.opts.Notify
	m.mu.Unlock()

	if err != nil {
		log.Printf("Error auto-submitting review for %s: %v", m.userID, err)
		return
	}
	log.Printf("review time ran out for %s, %d/%d correct", m.userID, report.Outcome.Correct, report.Outcome.Total)
	if notify != nil {
		notify(Event{Kind: EventReviewTimedOut, UserID: m.userID, Review: &report})
	}
}

func (m *Machine) stopCountdownLocked() {
	if m.stopCountdown != nil {
		m.stopCountdown()
		m.stopCountdown = nil
	}
}

func (m *Machine) dropSessionLocked() {
	m.stopCountdownLocked()
	if m.session != nil {
		m.session.Quit()
		m.session = nil
	}
}

func viewOf(s *review.Session) ReviewView {
	view := ReviewView{
		SessionID: s.ID,
		Config:    s.Config,
		State:     s.State().String(),
		Drafts:    s.Drafts(),
		Remaining: s.Remaining(),
		Results:   s.Results(),
	}
	for _, q := range s.Questions() {
		view.Questions = append(view.Questions, ReviewQuestion{ID: q.ID, Meaning: q.Meaning})
	}
	return view
}
