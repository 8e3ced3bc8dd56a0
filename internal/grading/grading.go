// Package grading checks quiz answers: dictation by normalized comparison, meaning by a
// semantic judge with a local fallback.
package grading

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/example/vocastar/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Normalize lower-cases s, drops everything except a-z, 0-9 and space, and trims the ends
func Normalize(s string) string {
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// GradeDictation reports whether answer spells reference
func GradeDictation(reference, answer string) bool {
	return Normalize(reference) == Normalize(answer)
}

// SemanticJudge decides whether candidate means the same as reference
type SemanticJudge interface {
	JudgeSemanticMatch(ctx context.Context, reference, candidate string) (bool, error)
}

// Verdict is the graded outcome for one idiom
type Verdict struct {
	ID         string
	UserAnswer string
	IsCorrect  bool
}

// Result converts the verdict into a stored quiz result
func (v Verdict) Result() models.QuizResult {
	return models.QuizResult{IsCorrect: v.IsCorrect, UserAnswer: v.UserAnswer, Attempted: true}
}

// MeaningGrader grades meaning answers. A nil judge always uses the substring fallback.
type MeaningGrader struct {
	judge SemanticJudge
}

// NewMeaningGrader creates a grader backed by judge
func NewMeaningGrader(judge SemanticJudge) *MeaningGrader {
	return &MeaningGrader{judge: judge}
}

// Grade checks one answer against the reference meaning. Blank answers are wrong
// without asking the judge.
func (g *MeaningGrader) Grade(ctx context.Context, reference, answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	if g.judge != nil {
		ok, err := g.judge.JudgeSemanticMatch(ctx, reference, answer)
		if err == nil {
			return ok
		}
		log.Printf("semantic grading failed, using substring fallback: %v", err)
	}
	return substringMatch(reference, answer)
}

// GradeBatch grades every idiom concurrently, one judge call per idiom. Verdicts keep the
// order of idioms.
func (g *MeaningGrader) GradeBatch(ctx context.Context, idioms []models.IdiomEntry, answers map[string]string) []Verdict {
	verdicts := make([]Verdict, len(idioms))
	var eg errgroup.Group
	var mu sync.Mutex
	for i, idiom := range idioms {
		i, idiom := i, idiom
		eg.Go(func() error {
			answer := answers[idiom.ID]
			ok := g.Grade(ctx, idiom.Meaning, answer)
			mu.Lock()
			verdicts[i] = Verdict{ID: idiom.ID, UserAnswer: answer, IsCorrect: ok}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return verdicts
}

// GradeDictationBatch grades every idiom against its English phrase
func GradeDictationBatch(idioms []models.IdiomEntry, answers map[string]string) []Verdict {
	verdicts := make([]Verdict, 0, len(idioms))
	for _, idiom := range idioms {
		answer := answers[idiom.ID]
		verdicts = append(verdicts, Verdict{
			ID:         idiom.ID,
			UserAnswer: answer,
			IsCorrect:  GradeDictation(idiom.English, answer),
		})
	}
	return verdicts
}

// substringMatch is the case-sensitive containment check used when the judge is unavailable
func substringMatch(reference, answer string) bool {
	return strings.Contains(answer, reference) || strings.Contains(reference, answer)
}
