package progress

import (
	"context"
	"log"

	"github.com/example/vocastar/internal/curriculum"
	"github.com/example/vocastar/internal/grading"
	"github.com/example/vocastar/pkg/models"
)

// QuizKind selects one of the two per-day quizzes
type QuizKind int

const (
	QuizMeaning QuizKind = iota
	QuizDictation
)

// DayView is what a front end shows for the current position
type DayView struct {
	Position         models.Position     `json:"position"`
	Week             models.WeekInfo     `json:"week"`
	IsReviewWeek     bool                `json:"isReviewWeek"`
	Step             string              `json:"step"`
	Idioms           []models.IdiomEntry `json:"idioms"`
	PendingMeaning   []models.IdiomEntry `json:"pendingMeaning"`
	PendingDictation []models.IdiomEntry `json:"pendingDictation"`
	Celebrating      bool                `json:"celebrating"`
}

// QuizReport is the outcome of one quiz batch
type QuizReport struct {
	Verdicts    []grading.Verdict `json:"verdicts"`
	Correct     int               `json:"correct"`
	Total       int               `json:"total"`
	DayComplete bool              `json:"dayComplete"`
	Awarded     int               `json:"awarded"`
}

// Day describes the current position
func (m *Machine) Day() DayView {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := m.p.Current
	view := DayView{
		Position:     pos,
		Week:         m.cur.WeekInfo(pos.Week),
		IsReviewWeek: curriculum.IsReviewWeek(pos.Week),
		Step:         m.step.String(),
		Celebrating:  m.celebrating,
	}
	if !view.IsReviewWeek {
		view.Idioms = m.cur.ForDay(pos.Week, pos.Day)
		view.PendingMeaning = pendingIn(view.Idioms, m.p.MeaningQuiz)
		view.PendingDictation = pendingIn(view.Idioms, m.p.DictationQuiz)
	}
	return view
}

// Step returns the phase of the study flow
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Pending returns the current day's idioms not yet answered correctly in the given quiz
func (m *Machine) Pending(kind QuizKind) []models.IdiomEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pendingIn(m.cur.ForDay(m.p.Current.Week, m.p.Current.Day), m.resultsLocked(kind))
}

// CompleteStudy marks the study step done and opens the quizzes
func (m *Machine) CompleteStudy() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if curriculum.IsReviewWeek(m.p.Current.Week) {
		return ErrReviewWeek
	}
	if m.step == StepStudy {
		m.step = StepMeaning
	}
	return nil
}

// SubmitMeaning grades answers for every pending idiom of the day. The judge is called
// concurrently and without holding the machine lock.
func (m *Machine) SubmitMeaning(ctx context.Context, answers map[string]string) (QuizReport, error) {
	pending, err := m.beginQuiz(QuizMeaning)
	if err != nil {
		return QuizReport{}, err
	}
	verdicts := m.opts.Grader.GradeBatch(ctx, pending, answers)
	return m.applyVerdicts(ctx, QuizMeaning, verdicts)
}

// SubmitDictation grades answers for every pending idiom of the day
func (m *Machine) SubmitDictation(ctx context.Context, answers map[string]string) (QuizReport, error) {
	pending, err := m.beginQuiz(QuizDictation)
	if err != nil {
		return QuizReport{}, err
	}
	verdicts := grading.GradeDictationBatch(pending, answers)
	return m.applyVerdicts(ctx, QuizDictation, verdicts)
}

func (m *Machine) beginQuiz(kind QuizKind) ([]models.IdiomEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if curriculum.IsReviewWeek(m.p.Current.Week) {
		return nil, ErrReviewWeek
	}
	if m.step == StepStudy {
		return nil, ErrStudyIncomplete
	}
	if kind == QuizDictation {
		m.step = StepDictation
	} else {
		m.step = StepMeaning
	}
	return pendingIn(m.cur.ForDay(m.p.Current.Week, m.p.Current.Day), m.resultsLocked(kind)), nil
}

func (m *Machine) applyVerdicts(ctx context.Context, kind QuizKind, verdicts []grading.Verdict) (QuizReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		log.Printf("dropping %d late verdicts for %s, session ended", len(verdicts), m.userID)
		return QuizReport{}, ErrSessionClosed
	}

	results := m.resultsLocked(kind)
	report := QuizReport{Verdicts: verdicts, Total: len(verdicts)}
	for _, v := range verdicts {
		results[v.ID] = v.Result()
		if v.IsCorrect {
			report.Correct++
		} else {
			m.p.AddFavorite(v.ID)
		}
	}

	report.Awarded, report.DayComplete = m.checkDayCompleteLocked()
	return report, m.saveLocked(ctx)
}

// checkDayCompleteLocked starts the celebration once every idiom of the current day is correct
// in both quizzes
func (m *Machine) checkDayCompleteLocked() (int, bool) {
	pos := m.p.Current
	if curriculum.IsReviewWeek(pos.Week) {
		return 0, false
	}
	idioms := m.cur.ForDay(pos.Week, pos.Day)
	if len(idioms) == 0 {
		return 0, false
	}
	for _, idiom := range idioms {
		if !m.p.MeaningQuiz.IsCorrect(idiom.ID) || !m.p.DictationQuiz.IsCorrect(idiom.ID) {
			return 0, false
		}
	}
	return m.beginCelebrationLocked(m.opts.CompletionBonus)
}

func (m *Machine) resultsLocked(kind QuizKind) models.QuizResultMap {
	if kind == QuizDictation {
		return m.p.DictationQuiz
	}
	return m.p.MeaningQuiz
}

func pendingIn(idioms []models.IdiomEntry, results models.QuizResultMap) []models.IdiomEntry {
	var out []models.IdiomEntry
	for _, idiom := range idioms {
		if !results.IsCorrect(idiom.ID) {
			out = append(out, idiom)
		}
	}
	return out
}
