// Package admin reads and edits every learner record for the admin dashboard.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/example/vocastar/internal/persistence"
	"github.com/example/vocastar/pkg/models"
)

// ErrUserNotFound is returned when a learner has no stored record
var ErrUserNotFound = errors.New("user not found")

// UserSummary is one roster row
type UserSummary struct {
	ID          string          `json:"id"`
	Score       int             `json:"score"`
	Favorites   []string        `json:"favorites"`
	MaxUnlocked models.Position `json:"maxUnlocked"`
	Current     models.Position `json:"current"`
}

// Sessions routes an edit to the running session of userID when there is one, and otherwise
// calls stored, which edits the stored record. A running session would save its own copy of the
// progress over a record edited behind its back.
type Sessions interface {
	EditLearner(ctx context.Context, userID string, edit func(*models.UserProgress), stored func() (*models.UserProgress, error)) (*models.UserProgress, error)
}

// Aggregator works on stored records, handing edits of logged-in learners to their session
type Aggregator struct {
	records *persistence.Adapter

	mu       sync.Mutex
	users    []UserSummary
	sessions Sessions
}

// New creates an aggregator over the records of adapter
func New(records *persistence.Adapter) *Aggregator {
	return &Aggregator{records: records}
}

// UseSessions makes edits go through the running learner sessions of sessions
func (a *Aggregator) UseSessions(sessions Sessions) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = sessions
}

// ListAllUsers re-reads every learner record, skipping ones that fail to parse, and returns
// them by score, highest first.
func (a *Aggregator) ListAllUsers(ctx context.Context) ([]UserSummary, error) {
	keys, err := a.records.Store().ListByPrefix(ctx, a.records.Prefix())
	if err != nil {
		return nil, err
	}

	users := make([]UserSummary, 0, len(keys))
	for _, key := range keys {
		id, ok := a.records.UserID(key)
		if !ok || a.records.IsReserved(id) {
			continue
		}
		p, found, err := a.records.LoadRaw(ctx, key)
		if err != nil {
			log.Printf("skipping user record %s: %v", key, err)
			continue
		}
		if !found {
			continue
		}
		users = append(users, summarize(id, p))
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Score > users[j].Score
	})

	a.mu.Lock()
	a.users = users
	a.mu.Unlock()
	return cloneUsers(users), nil
}

// Users returns the roster as of the last refresh or edit
func (a *Aggregator) Users() []UserSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneUsers(a.users)
}

// AdjustScore adds delta to the learner's score, never going below zero, and returns the new score
func (a *Aggregator) AdjustScore(ctx context.Context, userID string, delta int) (int, error) {
	p, err := a.edit(ctx, userID, func(p *models.UserProgress) {
		p.Score += delta
		if p.Score < 0 {
			p.Score = 0
		}
	})
	if err != nil {
		return 0, err
	}
	log.Printf("admin adjusted score of %s by %d to %d", userID, delta, p.Score)
	return p.Score, nil
}

// SetMaxUnlocked overwrites the learner's unlock ceiling. When the current position lies in a
// later week it is moved to day 1 of the new week; a later day in the same week is left as is.
func (a *Aggregator) SetMaxUnlocked(ctx context.Context, userID string, week, day int) error {
	pos := models.Position{Week: week, Day: day}
	if !pos.Valid() {
		return fmt.Errorf("invalid position week %d day %d", week, day)
	}
	_, err := a.edit(ctx, userID, func(p *models.UserProgress) {
		p.MaxUnlocked = pos
		if p.Current.Week > week {
			p.Current = models.Position{Week: week, Day: 1}
		}
	})
	if err != nil {
		return err
	}
	log.Printf("admin set max unlocked of %s to week %d day %d", userID, week, day)
	return nil
}

// FavoritesOf returns the learner's favorite idiom ids
func (a *Aggregator) FavoritesOf(ctx context.Context, userID string) ([]string, error) {
	p, err := a.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.Favorites, nil
}

// edit applies fn to the learner's progress, through the running session when there is one
func (a *Aggregator) edit(ctx context.Context, userID string, fn func(*models.UserProgress)) (*models.UserProgress, error) {
	if a.records.IsReserved(userID) {
		return nil, persistence.ErrReservedUser
	}
	stored := func() (*models.UserProgress, error) {
		p, err := a.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		fn(p)
		if err := a.records.Save(ctx, userID, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	a.mu.Lock()
	sessions := a.sessions
	a.mu.Unlock()

	var p *models.UserProgress
	var err error
	if sessions != nil {
		p, err = sessions.EditLearner(ctx, userID, fn, stored)
	} else {
		p, err = stored()
	}
	if err != nil {
		return nil, err
	}
	a.update(userID, p)
	return p, nil
}

func (a *Aggregator) load(ctx context.Context, userID string) (*models.UserProgress, error) {
	if a.records.IsReserved(userID) {
		return nil, persistence.ErrReservedUser
	}
	p, found, err := a.records.LoadRaw(ctx, a.records.Key(userID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return p, nil
}

func (a *Aggregator) update(userID string, p *models.UserProgress) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.users {
		if a.users[i].ID == userID {
			a.users[i] = summarize(userID, p)
			break
		}
	}
	sort.SliceStable(a.users, func(i, j int) bool {
		return a.users[i].Score > a.users[j].Score
	})
}

func summarize(id string, p *models.UserProgress) UserSummary {
	return UserSummary{
		ID:          id,
		Score:       p.Score,
		Favorites:   append([]string{}, p.Favorites...),
		MaxUnlocked: p.MaxUnlocked,
		Current:     p.Current,
	}
}

func cloneUsers(users []UserSummary) []UserSummary {
	out := make([]UserSummary, len(users))
	copy(out, users)
	return out
}
