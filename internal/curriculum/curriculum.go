// Package curriculum holds the static idiom table and week metadata.
package curriculum

import (
	"fmt"
	"sort"

	"github.com/example/vocastar/pkg/models"
)

// ReviewWeeks are the weeks whose sessions sample earlier weeks instead of a fixed day list
var ReviewWeeks = []int{6, 12, 18, 24, 27}

// IsReviewWeek reports whether week is a review week
func IsReviewWeek(week int) bool {
	for _, w := range ReviewWeeks {
		if w == week {
			return true
		}
	}
	return false
}

// Store is the read-only curriculum. It is safe for concurrent use because it never changes
// after construction.
type Store struct {
	idioms []models.IdiomEntry
	byID   map[string]int
	weeks  map[int]models.WeekInfo
}

// New builds a store. Idioms keep their given order; duplicate ids are rejected.
func New(idioms []models.IdiomEntry, weeks []models.WeekInfo) (*Store, error) {
	s := &Store{
		idioms: make([]models.IdiomEntry, 0, len(idioms)),
		byID:   make(map[string]int, len(idioms)),
		weeks:  make(map[int]models.WeekInfo, len(weeks)),
	}
	for _, idiom := range idioms {
		if _, dup := s.byID[idiom.ID]; dup {
			return nil, fmt.Errorf("duplicate idiom id %q", idiom.ID)
		}
		s.byID[idiom.ID] = len(s.idioms)
		s.idioms = append(s.idioms, idiom)
	}
	for _, w := range weeks {
		s.weeks[w.Week] = w
	}
	return s, nil
}

// Len returns the number of idioms
func (s *Store) Len() int {
	return len(s.idioms)
}

// ForDay returns the idioms scheduled for a standard (week, day)
func (s *Store) ForDay(week, day int) []models.IdiomEntry {
	var out []models.IdiomEntry
	for _, idiom := range s.idioms {
		if idiom.Week == week && idiom.Day == day {
			out = append(out, idiom)
		}
	}
	return out
}

// ForWeeks returns every idiom whose week is listed, irrespective of day
func (s *Store) ForWeeks(weeks []int) []models.IdiomEntry {
	set := make(map[int]bool, len(weeks))
	for _, w := range weeks {
		set[w] = true
	}
	var out []models.IdiomEntry
	for _, idiom := range s.idioms {
		if set[idiom.Week] {
			out = append(out, idiom)
		}
	}
	return out
}

// Get returns an idiom by id
func (s *Store) Get(id string) (models.IdiomEntry, bool) {
	i, ok := s.byID[id]
	if !ok {
		return models.IdiomEntry{}, false
	}
	return s.idioms[i], true
}

// ByIDs resolves ids to idioms in curriculum order, skipping unknown ids
func (s *Store) ByIDs(ids []string) []models.IdiomEntry {
	idx := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if i, ok := s.byID[id]; ok && !seen[i] {
			seen[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	out := make([]models.IdiomEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.idioms[i])
	}
	return out
}

// WeekInfo returns metadata for week, with a generated title and label when none was loaded
func (s *Store) WeekInfo(week int) models.WeekInfo {
	if w, ok := s.weeks[week]; ok {
		return w
	}
	return models.WeekInfo{
		Week:  week,
		Title: fmt.Sprintf("Week %d", week),
		Label: fmt.Sprintf("%d주차", week),
	}
}
