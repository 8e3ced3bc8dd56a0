// Package review derives review-week quizzes from the curriculum and runs review sessions.
package review

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/example/vocastar/pkg/models"
)

const (
	// DefaultQuestionCount is the size of every review quiz except the final exam
	DefaultQuestionCount = 15

	// FinalWeek is the closing block covering the whole course
	FinalWeek = 27

	finalExamQuestions   = 100
	finalExamTimeLimit   = 40 * 60
	finalExamSourceWeeks = 26
	blockLength          = 6
)

// ErrNoData is returned when no idiom belongs to the target weeks
var ErrNoData = errors.New("no data found for this review period")

// DeriveConfig returns the quiz layout of a review-week day. It is only meaningful for
// review weeks; other weeks study a fixed day list.
func DeriveConfig(week, day int) models.ReviewConfig {
	cfg := models.ReviewConfig{QuestionCount: DefaultQuestionCount}

	if week == FinalWeek {
		switch {
		case day == 1:
			cfg.TargetWeeks = []int{25}
			cfg.Title = "Week 25 Review"
		case day == 2:
			cfg.TargetWeeks = []int{26}
			cfg.Title = "Week 26 Review"
		case day >= 3 && day <= 5:
			cfg.TargetWeeks = weekRange(1, finalExamSourceWeeks)
			cfg.Title = "Comprehensive Review (Random)"
		case day == 6:
			cfg.TargetWeeks = weekRange(1, finalExamSourceWeeks)
			cfg.Title = fmt.Sprintf("FINAL EXAM: %d Questions", finalExamQuestions)
			cfg.QuestionCount = finalExamQuestions
			cfg.TimeLimitSeconds = finalExamTimeLimit
			cfg.IsFinalExam = true
		}
		return cfg
	}

	blockIndex := week / blockLength
	start := (blockIndex-1)*blockLength + 1
	if day == models.DaysPerWeek {
		cfg.TargetWeeks = weekRange(start, start+4)
		cfg.Title = fmt.Sprintf("Weeks %d-%d Review", start, start+4)
		return cfg
	}
	specific := start + day - 1
	cfg.TargetWeeks = []int{specific}
	cfg.Title = fmt.Sprintf("Week %d Review", specific)
	return cfg
}

func weekRange(from, to int) []int {
	weeks := make([]int, 0, to-from+1)
	for w := from; w <= to; w++ {
		weeks = append(weeks, w)
	}
	return weeks
}

// Source supplies the idioms of a set of weeks
type Source interface {
	ForWeeks(weeks []int) []models.IdiomEntry
}

// Select draws up to cfg.QuestionCount idioms from the target weeks in random order
func Select(cfg models.ReviewConfig, src Source, rnd *rand.Rand) ([]models.IdiomEntry, error) {
	pool := src.ForWeeks(cfg.TargetWeeks)
	if len(pool) == 0 {
		return nil, ErrNoData
	}

	shuffled := make([]models.IdiomEntry, len(pool))
	copy(shuffled, pool)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	if cfg.QuestionCount > 0 && cfg.QuestionCount < len(shuffled) {
		shuffled = shuffled[:cfg.QuestionCount]
	}
	return shuffled, nil
}

// Award returns the points for a finished session. The final exam pays per correct answer;
// every other review pays the flat bonus however many answers were right.
func Award(cfg models.ReviewConfig, correct, bonus, perAnswer int) int {
	if cfg.IsFinalExam {
		return correct * perAnswer
	}
	return bonus
}
