package progress

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/example/vocastar/internal/curriculum"
	"github.com/example/vocastar/internal/grading"
	"github.com/example/vocastar/internal/review"
	"github.com/example/vocastar/internal/scheduler"
	"github.com/example/vocastar/pkg/models"
)

type memorySaver struct {
	mu    sync.Mutex
	saved map[string]*models.UserProgress
	count int
}

func (s *memorySaver) Save(ctx context.Context, userID string, p *models.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string]*models.UserProgress{}
	}
	s.saved[userID] = p.Clone()
	s.count++
	return nil
}

type judgeFunc func(reference, candidate string) (bool, error)

func (f judgeFunc) JudgeSemanticMatch(ctx context.Context, reference, candidate string) (bool, error) {
	return f(reference, candidate)
}

// exactJudge accepts an answer equal to the reference meaning
var exactJudge = judgeFunc(func(reference, candidate string) (bool, error) {
	return reference == candidate, nil
})

func testCurriculum(t *testing.T) *curriculum.Store {
	t.Helper()
	var idioms []models.IdiomEntry
	for w := 1; w <= 12; w++ {
		if curriculum.IsReviewWeek(w) {
			continue
		}
		for d := 1; d <= models.DaysPerWeek; d++ {
			for n := 1; n <= 2; n++ {
				idioms = append(idioms, models.IdiomEntry{
					ID:      fmt.Sprintf("w%dd%d-%d", w, d, n),
					English: fmt.Sprintf("phrase %d %d %d", w, d, n),
					Meaning: fmt.Sprintf("뜻 %d %d %d", w, d, n),
					Week:    w,
					Day:     d,
				})
			}
		}
	}
	store, err := curriculum.New(idioms, nil)
	if err != nil {
		t.Fatalf("curriculum.New() error = %v", err)
	}
	return store
}

func newMachine(t *testing.T, p *models.UserProgress) (*Machine, *scheduler.Manual, *memorySaver) {
	t.Helper()
	timers := scheduler.NewManual()
	saver := &memorySaver{}
	m := New("kim", p, testCurriculum(t), saver, Options{
		Timers:            timers,
		Grader:            grading.NewMeaningGrader(exactJudge),
		CompletionBonus:   10,
		PointsPerAnswer:   10,
		CelebrationWindow: 5 * time.Second,
		Rand:              rand.New(rand.NewSource(7)),
	})
	return m, timers, saver
}

func answersFor(idioms []models.IdiomEntry, meaning bool) map[string]string {
	out := map[string]string{}
	for _, idiom := range idioms {
		if meaning {
			out[idiom.ID] = idiom.Meaning
		} else {
			out[idiom.ID] = idiom.English
		}
	}
	return out
}

func passDay(t *testing.T, m *Machine) (QuizReport, QuizReport) {
	t.Helper()
	ctx := context.Background()
	if err := m.CompleteStudy(); err != nil {
		t.Fatalf("CompleteStudy() error = %v", err)
	}
	day := m.Day()
	meaning, err := m.SubmitMeaning(ctx, answersFor(day.Idioms, true))
	if err != nil {
		t.Fatalf("SubmitMeaning() error = %v", err)
	}
	dictation, err := m.SubmitDictation(ctx, answersFor(day.Idioms, false))
	if err != nil {
		t.Fatalf("SubmitDictation() error = %v", err)
	}
	return meaning, dictation
}

func TestQuizLockedUntilStudyComplete(t *testing.T) {
	m, _, _ := newMachine(t, nil)
	if _, err := m.SubmitDictation(context.Background(), nil); !errors.Is(err, ErrStudyIncomplete) {
		t.Fatalf("expected ErrStudyIncomplete, got %v", err)
	}
	if m.Step() != StepStudy {
		t.Fatalf("expected study step")
	}
}

func TestDayCompletionAwardsOnceAndUnlocksAfterWindow(t *testing.T) {
	m, timers, saver := newMachine(t, nil)

	meaning, dictation := passDay(t, m)
	if meaning.DayComplete || meaning.Correct != 2 {
		t.Fatalf("day must not complete before dictation: %+v", meaning)
	}
	if !dictation.DayComplete || dictation.Awarded != 10 {
		t.Fatalf("expected completion with 10 points, got %+v", dictation)
	}

	snap := m.Snapshot()
	if snap.Score != 10 || snap.MaxUnlocked != models.StartPosition {
		t.Fatalf("unlock must wait for the window: %+v", snap)
	}
	if !m.Celebrating() {
		t.Fatalf("expected celebration")
	}

	// a second full pass during the window awards nothing
	if _, err := m.SubmitDictation(context.Background(), nil); err != nil {
		t.Fatalf("SubmitDictation() error = %v", err)
	}
	if m.Snapshot().Score != 10 {
		t.Fatalf("bonus awarded twice")
	}

	timers.Advance(5 * time.Second)
	snap = m.Snapshot()
	if snap.MaxUnlocked != (models.Position{Week: 1, Day: 2}) {
		t.Fatalf("MaxUnlocked = %v, want {1 2}", snap.MaxUnlocked)
	}
	if snap.Current != models.StartPosition {
		t.Fatalf("current must not move on unlock, got %v", snap.Current)
	}
	if saver.saved["kim"].MaxUnlocked != snap.MaxUnlocked {
		t.Fatalf("unlock not saved")
	}
}

func TestRevisitDoesNotAward(t *testing.T) {
	p := models.NewUserProgress()
	p.MaxUnlocked = models.Position{Week: 2, Day: 3}
	p.Score = 100
	m, timers, _ := newMachine(t, p)

	_, dictation := passDay(t, m)
	if dictation.DayComplete || dictation.Awarded != 0 {
		t.Fatalf("revisit must not award: %+v", dictation)
	}
	timers.Advance(time.Minute)
	snap := m.Snapshot()
	if snap.Score != 100 || snap.MaxUnlocked != (models.Position{Week: 2, Day: 3}) {
		t.Fatalf("revisit changed progress: %+v", snap)
	}
}

func TestWrongAnswersBecomeFavoritesAndStayPending(t *testing.T) {
	m, _, _ := newMachine(t, nil)
	ctx := context.Background()
	_ = m.CompleteStudy()

	report, err := m.SubmitDictation(ctx, map[string]string{"w1d1-1": "Phrase 1 1 1!", "w1d1-2": "wrong"})
	if err != nil {
		t.Fatalf("SubmitDictation() error = %v", err)
	}
	if report.Correct != 1 || report.Total != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	snap := m.Snapshot()
	if !snap.HasFavorite("w1d1-2") || snap.HasFavorite("w1d1-1") {
		t.Fatalf("unexpected favorites %v", snap.Favorites)
	}
	if r := snap.DictationQuiz["w1d1-2"]; !r.Attempted || r.IsCorrect || r.UserAnswer != "wrong" {
		t.Fatalf("unexpected stored result %+v", r)
	}

	pending := m.Pending(QuizDictation)
	if len(pending) != 1 || pending[0].ID != "w1d1-2" {
		t.Fatalf("expected only the wrong idiom pending, got %+v", pending)
	}

	// an empty meaning answer is wrong and favorited too
	meaning, _ := m.SubmitMeaning(ctx, map[string]string{"w1d1-1": "뜻 1 1 1"})
	if meaning.Correct != 1 || !m.Snapshot().HasFavorite("w1d1-2") {
		t.Fatalf("unexpected meaning report %+v", meaning)
	}
}

func TestNavigateOnlyWithinUnlocked(t *testing.T) {
	p := models.NewUserProgress()
	p.MaxUnlocked = models.Position{Week: 3, Day: 4}
	m, _, _ := newMachine(t, p)
	ctx := context.Background()

	for w := 1; w <= 5; w++ {
		for d := 0; d <= 7; d++ {
			target := models.Position{Week: w, Day: d}
			before := m.Snapshot().Current
			ok, err := m.Navigate(ctx, target)
			if err != nil {
				t.Fatalf("Navigate() error = %v", err)
			}
			want := target.Valid() && target.AtMost(p.MaxUnlocked)
			if ok != want {
				t.Fatalf("Navigate(%v) = %v, want %v", target, ok, want)
			}
			after := m.Snapshot().Current
			if ok && after != target {
				t.Fatalf("current = %v, want %v", after, target)
			}
			if !ok && after != before {
				t.Fatalf("rejected navigation changed current to %v", after)
			}
		}
	}
}

func TestNavigateResetsStudyFlow(t *testing.T) {
	p := models.NewUserProgress()
	p.MaxUnlocked = models.Position{Week: 1, Day: 3}
	m, _, _ := newMachine(t, p)
	_ = m.CompleteStudy()
	if _, err := m.Navigate(context.Background(), models.Position{Week: 1, Day: 2}); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if m.Step() != StepStudy {
		t.Fatalf("expected study step after navigation, got %s", m.Step())
	}
}

func TestLevelsNewestFirst(t *testing.T) {
	p := models.NewUserProgress()
	p.MaxUnlocked = models.Position{Week: 2, Day: 2}
	m, _, _ := newMachine(t, p)
	levels := m.Levels()
	if len(levels) != 8 {
		t.Fatalf("expected 8 levels, got %d", len(levels))
	}
	if levels[0] != (models.Position{Week: 2, Day: 2}) || levels[7] != models.StartPosition {
		t.Fatalf("unexpected order %v", levels)
	}
}

func TestToggleFavorite(t *testing.T) {
	m, _, saver := newMachine(t, nil)
	ctx := context.Background()
	if fav, err := m.ToggleFavorite(ctx, "w1d2-1"); err != nil || !fav {
		t.Fatalf("ToggleFavorite() = %v, %v", fav, err)
	}
	if got := m.Favorites(); len(got) != 1 || got[0].ID != "w1d2-1" {
		t.Fatalf("unexpected favorites %+v", got)
	}
	if fav, _ := m.ToggleFavorite(ctx, "w1d2-1"); fav {
		t.Fatalf("expected removal")
	}
	if _, err := m.ToggleFavorite(ctx, "nope"); err == nil {
		t.Fatalf("expected error for unknown idiom")
	}
	if saver.count != 2 {
		t.Fatalf("expected a save per toggle, got %d", saver.count)
	}
}

func TestResetDuringCelebrationKeepsUnlock(t *testing.T) {
	m, timers, saver := newMachine(t, nil)
	passDay(t, m)
	if err := m.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if saver.saved["kim"].MaxUnlocked != (models.Position{Week: 1, Day: 2}) {
		t.Fatalf("pending unlock lost on reset: %v", saver.saved["kim"].MaxUnlocked)
	}
	if snap := m.Snapshot(); snap.Score != 0 || snap.MaxUnlocked != models.StartPosition {
		t.Fatalf("in-memory state not reset: %+v", snap)
	}
	if timers.Pending() != 0 {
		t.Fatalf("celebration timer still pending")
	}
}

func reviewMachine(t *testing.T, pos models.Position) (*Machine, *scheduler.Manual) {
	t.Helper()
	p := models.NewUserProgress()
	p.MaxUnlocked = pos
	p.Current = pos
	m, timers, _ := newMachine(t, p)
	return m, timers
}

func TestReviewSessionAwardsFlatBonus(t *testing.T) {
	m, timers := reviewMachine(t, models.Position{Week: 12, Day: 6})
	ctx := context.Background()

	if err := m.CompleteStudy(); !errors.Is(err, ErrReviewWeek) {
		t.Fatalf("expected ErrReviewWeek, got %v", err)
	}
	intro, err := m.Review()
	if err != nil || intro.State != "intro" || intro.Config.Title != "Weeks 7-11 Review" {
		t.Fatalf("unexpected intro %+v, %v", intro, err)
	}

	view, err := m.StartReview()
	if err != nil {
		t.Fatalf("StartReview() error = %v", err)
	}
	if len(view.Questions) != review.DefaultQuestionCount {
		t.Fatalf("expected %d questions, got %d", review.DefaultQuestionCount, len(view.Questions))
	}

	// one right answer out of fifteen still completes the session
	first := view.Questions[0].ID
	idiom, _ := testCurriculum(t).Get(first)
	report, err := m.SubmitReview(ctx, map[string]string{first: idiom.English})
	if err != nil {
		t.Fatalf("SubmitReview() error = %v", err)
	}
	if report.Outcome.Correct != 1 || report.Awarded != 10 {
		t.Fatalf("unexpected report %+v", report)
	}
	snap := m.Snapshot()
	if len(snap.Favorites) != 14 {
		t.Fatalf("expected 14 missed favorites, got %d", len(snap.Favorites))
	}
	if _, err := m.SubmitReview(ctx, nil); !errors.Is(err, review.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	timers.Advance(5 * time.Second)
	if got := m.Snapshot().MaxUnlocked; got != (models.Position{Week: 13, Day: 1}) {
		t.Fatalf("MaxUnlocked = %v, want {13 1}", got)
	}
}

func TestReviewNoData(t *testing.T) {
	m, _ := reviewMachine(t, models.Position{Week: 18, Day: 3})
	if _, err := m.StartReview(); !errors.Is(err, review.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestReviewOutsideReviewWeek(t *testing.T) {
	m, _, _ := newMachine(t, nil)
	if _, err := m.StartReview(); !errors.Is(err, ErrNotReviewWeek) {
		t.Fatalf("expected ErrNotReviewWeek, got %v", err)
	}
}

func TestReviewCountdownAutoSubmits(t *testing.T) {
	m, timers := reviewMachine(t, models.Position{Week: 12, Day: 1})
	var events []Event
	m.opts.Notify = func(e Event) { events = append(events, e) }

	// shorten the session so the countdown can be driven quickly
	m.mu.Lock()
	sess, _ := review.NewSession(models.ReviewConfig{TargetWeeks: []int{7}, QuestionCount: 2, TimeLimitSeconds: 3})
	_ = sess.Begin(m.cur.ForDay(7, 1))
	m.session = sess
	id := sess.ID
	m.stopCountdown = m.opts.Timers.Every(time.Second, func() { m.tick(id) })
	m.mu.Unlock()

	if err := m.SetReviewAnswer("w7d1-1", "phrase 7 1 1"); err != nil {
		t.Fatalf("SetReviewAnswer() error = %v", err)
	}
	timers.Advance(2 * time.Second)
	if view, _ := m.Review(); view.State != "in_progress" || view.Remaining != 1 {
		t.Fatalf("unexpected view %+v", view)
	}
	timers.Advance(time.Second)

	view, _ := m.Review()
	if view.State != "complete" {
		t.Fatalf("expected auto-submit, state %s", view.State)
	}
	if len(events) != 1 || events[0].Kind != EventReviewTimedOut || events[0].Review.Outcome.Correct != 1 {
		t.Fatalf("unexpected events %+v", events)
	}
	if !events[0].Review.Outcome.TimedOut {
		t.Fatalf("expected timed out outcome")
	}
}

func TestQuitReviewStopsCountdown(t *testing.T) {
	m, timers := reviewMachine(t, models.Position{Week: 12, Day: 2})
	if _, err := m.StartReview(); err != nil {
		t.Fatalf("StartReview() error = %v", err)
	}
	m.QuitReview()
	if view, _ := m.Review(); view.State != "intro" {
		t.Fatalf("expected intro after quit, got %s", view.State)
	}
	if timers.Pending() != 0 {
		t.Fatalf("expected no timers after quit")
	}
}

func TestResetWhileJudgingKeepsStoredRecord(t *testing.T) {
	ctx := context.Background()
	p := models.NewUserProgress()
	p.Score = 500
	p.MaxUnlocked = models.Position{Week: 3, Day: 2}
	p.Current = p.MaxUnlocked
	saver := &memorySaver{}
	if err := saver.Save(ctx, "kim", p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	started := make(chan struct{}, 8)
	release := make(chan struct{})
	slowJudge := judgeFunc(func(reference, candidate string) (bool, error) {
		started <- struct{}{}
		<-release
		return true, nil
	})
	m := New("kim", p.Clone(), testCurriculum(t), saver, Options{
		Timers:            scheduler.NewManual(),
		Grader:            grading.NewMeaningGrader(slowJudge),
		CompletionBonus:   10,
		CelebrationWindow: 5 * time.Second,
	})
	if err := m.CompleteStudy(); err != nil {
		t.Fatalf("CompleteStudy() error = %v", err)
	}
	day := m.Day()

	errc := make(chan error, 1)
	go func() {
		_, err := m.SubmitMeaning(ctx, answersFor(day.Idioms, true))
		errc <- err
	}()
	<-started
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed for late verdicts, got %v", err)
	}
	if _, err := m.ToggleFavorite(ctx, day.Idioms[0].ID); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after reset, got %v", err)
	}

	saver.mu.Lock()
	defer saver.mu.Unlock()
	stored := saver.saved["kim"]
	if stored.Score != 500 || stored.MaxUnlocked != (models.Position{Week: 3, Day: 2}) || stored.Current != (models.Position{Week: 3, Day: 2}) {
		t.Fatalf("stored record overwritten: score=%d max=%v current=%v", stored.Score, stored.MaxUnlocked, stored.Current)
	}
	if len(stored.MeaningQuiz) != 0 || len(stored.Favorites) != 0 {
		t.Fatalf("late results leaked into the stored record: %+v", stored)
	}
}

func TestEditRaisingCeilingCancelsPendingUnlock(t *testing.T) {
	m, timers, saver := newMachine(t, nil)
	ctx := context.Background()
	passDay(t, m)

	p, err := m.Edit(ctx, func(p *models.UserProgress) {
		p.Score += 50
		p.MaxUnlocked = models.Position{Week: 3, Day: 4}
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if p.Score != 60 || p.MaxUnlocked != (models.Position{Week: 3, Day: 4}) {
		t.Fatalf("Edit() = %+v", p)
	}
	if m.Celebrating() || timers.Pending() != 0 {
		t.Fatalf("celebration must end when the ceiling moves")
	}
	timers.Advance(5 * time.Second)
	if got := saver.saved["kim"]; got.Score != 60 || got.MaxUnlocked != (models.Position{Week: 3, Day: 4}) {
		t.Fatalf("saved = score %d, max %v", got.Score, got.MaxUnlocked)
	}
}

func TestEditMovingCurrentRestartsStudy(t *testing.T) {
	p := models.NewUserProgress()
	p.MaxUnlocked = models.Position{Week: 2, Day: 3}
	p.Current = models.Position{Week: 2, Day: 3}
	m, _, _ := newMachine(t, p)
	ctx := context.Background()
	if err := m.CompleteStudy(); err != nil {
		t.Fatalf("CompleteStudy() error = %v", err)
	}

	if _, err := m.Edit(ctx, func(p *models.UserProgress) {
		p.MaxUnlocked = models.Position{Week: 1, Day: 6}
		p.Current = models.Position{Week: 1, Day: 1}
	}); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if m.Step() != StepStudy {
		t.Fatalf("step = %v, want study", m.Step())
	}

	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := m.Edit(ctx, func(p *models.UserProgress) { p.Score = 1 }); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
