package models

import (
	"encoding/json"
)

// QuizResult is the outcome of the latest attempt at one idiom in one quiz type
type QuizResult struct {
	IsCorrect  bool   `json:"isCorrect"`
	UserAnswer string `json:"userAnswer"`
	Attempted  bool   `json:"attempted"`
}

// QuizResultMap maps idiom id to its latest result. Presence implies at least one attempt.
type QuizResultMap map[string]QuizResult

// IsCorrect reports whether the idiom has been answered correctly
func (m QuizResultMap) IsCorrect(id string) bool {
	return m[id].IsCorrect
}

// UserProgress is the persisted per-learner aggregate
type UserProgress struct {
	Favorites     []string      `json:"favorites"`
	Score         int           `json:"score"`
	MaxUnlocked   Position      `json:"maxUnlocked"`
	Current       Position      `json:"-"`
	MeaningQuiz   QuizResultMap `json:"meaningQuizState"`
	DictationQuiz QuizResultMap `json:"dictationQuizState"`
}

// NewUserProgress returns the state of a never-before-seen learner
func NewUserProgress() *UserProgress {
	return &UserProgress{
		Favorites:     []string{},
		MaxUnlocked:   StartPosition,
		Current:       StartPosition,
		MeaningQuiz:   QuizResultMap{},
		DictationQuiz: QuizResultMap{},
	}
}

// progressRecord is the stored shape. The current position is kept as two flat
// fields so records written by earlier clients stay readable.
type progressRecord struct {
	Favorites     []string      `json:"favorites"`
	Score         int           `json:"score"`
	MaxUnlocked   *Position     `json:"maxUnlocked,omitempty"`
	MeaningQuiz   QuizResultMap `json:"meaningQuizState"`
	DictationQuiz QuizResultMap `json:"dictationQuizState"`
	CurrentWeek   int           `json:"currentWeek"`
	CurrentDay    int           `json:"currentDay"`
}

// MarshalJSON encodes the progress in the stored record format
func (p UserProgress) MarshalJSON() ([]byte, error) {
	maxUnlocked := p.MaxUnlocked
	rec := progressRecord{
		Favorites:     p.Favorites,
		Score:         p.Score,
		MaxUnlocked:   &maxUnlocked,
		MeaningQuiz:   p.MeaningQuiz,
		DictationQuiz: p.DictationQuiz,
		CurrentWeek:   p.Current.Week,
		CurrentDay:    p.Current.Day,
	}
	if rec.Favorites == nil {
		rec.Favorites = []string{}
	}
	if rec.MeaningQuiz == nil {
		rec.MeaningQuiz = QuizResultMap{}
	}
	if rec.DictationQuiz == nil {
		rec.DictationQuiz = QuizResultMap{}
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a stored record, filling absent fields with new-learner defaults
func (p *UserProgress) UnmarshalJSON(data []byte) error {
	var rec progressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	out := NewUserProgress()
	if rec.Favorites != nil {
		out.Favorites = rec.Favorites
	}
	if rec.Score > 0 {
		out.Score = rec.Score
	}
	if rec.MaxUnlocked != nil && rec.MaxUnlocked.Week > 0 {
		out.MaxUnlocked = *rec.MaxUnlocked
	}
	if rec.MeaningQuiz != nil {
		out.MeaningQuiz = rec.MeaningQuiz
	}
	if rec.DictationQuiz != nil {
		out.DictationQuiz = rec.DictationQuiz
	}
	if rec.CurrentWeek > 0 {
		out.Current.Week = rec.CurrentWeek
	}
	if rec.CurrentDay > 0 {
		out.Current.Day = rec.CurrentDay
	}

	*p = *out
	return nil
}

// HasFavorite reports whether id is in the favorites list
func (p *UserProgress) HasFavorite(id string) bool {
	for _, fav := range p.Favorites {
		if fav == id {
			return true
		}
	}
	return false
}

// AddFavorite adds id once; returns false when it was already present
func (p *UserProgress) AddFavorite(id string) bool {
	if p.HasFavorite(id) {
		return false
	}
	p.Favorites = append(p.Favorites, id)
	return true
}

// ToggleFavorite adds id when absent and removes it when present.
// Returns whether id is a favorite afterwards.
func (p *UserProgress) ToggleFavorite(id string) bool {
	for i, fav := range p.Favorites {
		if fav == id {
			p.Favorites = append(p.Favorites[:i:i], p.Favorites[i+1:]...)
			return false
		}
	}
	p.Favorites = append(p.Favorites, id)
	return true
}

// Clone returns a deep copy
func (p *UserProgress) Clone() *UserProgress {
	out := *p
	out.Favorites = append([]string{}, p.Favorites...)
	out.MeaningQuiz = make(QuizResultMap, len(p.MeaningQuiz))
	for k, v := range p.MeaningQuiz {
		out.MeaningQuiz[k] = v
	}
	out.DictationQuiz = make(QuizResultMap, len(p.DictationQuiz))
	for k, v := range p.DictationQuiz {
		out.DictationQuiz[k] = v
	}
	return &out
}
