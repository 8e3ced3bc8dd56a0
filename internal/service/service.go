// Package service routes logins to learner sessions or the admin view and keeps the live sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/example/vocastar/internal/admin"
	"github.com/example/vocastar/internal/ai"
	"github.com/example/vocastar/internal/curriculum"
	"github.com/example/vocastar/internal/persistence"
	"github.com/example/vocastar/internal/progress"
	"github.com/example/vocastar/internal/speech"
	"github.com/example/vocastar/pkg/models"
)

var (
	// ErrEmptyID is returned for blank login ids
	ErrEmptyID = errors.New("user id must not be empty")
	// ErrNotLoggedIn is returned for operations on an id without a live session
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrForbidden is returned when a learner calls an admin operation
	ErrForbidden = errors.New("admin only")
	// ErrSpeechDisabled is returned when no synthesizer is configured
	ErrSpeechDisabled = errors.New("speech synthesis is not configured")
)

// Role is what a login id routes to
type Role string

const (
	RoleLearner Role = "learner"
	RoleAdmin   Role = "admin"
)

// Deps are the collaborators of a Service
type Deps struct {
	Records    *persistence.Adapter
	Curriculum *curriculum.Store
	Admin      *admin.Aggregator
	Speech     *speech.Service   // nil disables speech
	Preloader  *speech.Preloader // nil disables preloading
	Machine    progress.Options
}

// Service holds one progress machine per logged-in learner
type Service struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*progress.Machine
	notifier func(progress.Event)
}

// New creates a service
func New(deps Deps) *Service {
	s := &Service{deps: deps, sessions: make(map[string]*progress.Machine)}
	s.deps.Machine.Notify = s.dispatch
	if deps.Admin != nil {
		deps.Admin.UseSessions(s)
	}
	return s
}

// SetNotifier registers the receiver of asynchronous session events
func (s *Service) SetNotifier(fn func(progress.Event)) {
	s.mu.Lock()
	s.notifier = fn
	s.mu.Unlock()
}

func (s *Service) dispatch(e progress.Event) {
	s.mu.Lock()
	fn := s.notifier
	s.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// Login trims rawID and routes it. Learners get their stored progress loaded into a live
// session; logging in again reuses the running one.
func (s *Service) Login(ctx context.Context, rawID string) (string, Role, error) {
	id := strings.TrimSpace(rawID)
	if id == "" {
		return "", "", ErrEmptyID
	}
	if s.deps.Records.IsReserved(id) {
		return id, RoleAdmin, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return id, RoleLearner, nil
	}

	p, found, err := s.deps.Records.Load(ctx, id)
	if err != nil {
		return "", "", fmt.Errorf("failed to load progress: %w", err)
	}
	if !found {
		log.Printf("new learner %s", id)
		if err := s.deps.Records.Save(ctx, id, p); err != nil {
			return "", "", err
		}
	}
	s.sessions[id] = progress.New(id, p, s.deps.Curriculum, s.deps.Records, s.deps.Machine)
	return id, RoleLearner, nil
}

// RoleOf returns the role of an id without logging it in
func (s *Service) RoleOf(id string) Role {
	if s.deps.Records.IsReserved(id) {
		return RoleAdmin
	}
	return RoleLearner
}

// Machine returns the live session of id
func (s *Service) Machine(id string) (*progress.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotLoggedIn
	}
	return m, nil
}

// Logout resets and drops the session of id and cancels its preload run. The stored record is kept.
func (s *Service) Logout(ctx context.Context, id string) error {
	if s.deps.Preloader != nil {
		s.deps.Preloader.Forget(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.sessions, id)
	// Reset saves a pending unlock; holding the lock keeps admin edits from interleaving
	return m.Reset(ctx)
}

// EditLearner applies an admin edit through the live session of userID, or through stored
// when the learner is not logged in. Logins wait until the edit is written.
func (s *Service) EditLearner(ctx context.Context, userID string, edit func(*models.UserProgress), stored func() (*models.UserProgress, error)) (*models.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.sessions[userID]; ok {
		return m.Edit(ctx, edit)
	}
	return stored()
}

// Shutdown logs every session out
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		if err := s.Logout(ctx, id); err != nil {
			log.Printf("Error closing session %s: %v", id, err)
		}
	}
}

// Admin returns the aggregator when id is the admin
func (s *Service) Admin(id string) (*admin.Aggregator, error) {
	if !s.deps.Records.IsReserved(id) {
		return nil, ErrForbidden
	}
	return s.deps.Admin, nil
}

// Curriculum returns the idiom tables
func (s *Service) Curriculum() *curriculum.Store {
	return s.deps.Curriculum
}

// AdminFavorites resolves a learner's favorites for the admin view
func (s *Service) AdminFavorites(ctx context.Context, adminID, userID string) ([]models.IdiomEntry, error) {
	agg, err := s.Admin(adminID)
	if err != nil {
		return nil, err
	}
	ids, err := agg.FavoritesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.deps.Curriculum.ByIDs(ids), nil
}

// Speak synthesizes text through the shared cache
func (s *Service) Speak(ctx context.Context, text string) (*ai.Audio, error) {
	if s.deps.Speech == nil {
		return nil, ErrSpeechDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}
	return s.deps.Speech.Speak(ctx, text)
}

// PreloadDay starts fetching audio for the English phrases of the learner's current day,
// cancelling any earlier preload run
func (s *Service) PreloadDay(ctx context.Context, id string) (speech.Token, int, error) {
	if s.deps.Preloader == nil {
		return speech.Token{}, 0, ErrSpeechDisabled
	}
	m, err := s.Machine(id)
	if err != nil {
		return speech.Token{}, 0, err
	}
	day := m.Day()
	texts := make([]string, 0, len(day.Idioms))
	for _, idiom := range day.Idioms {
		texts = append(texts, idiom.English)
	}
	return s.deps.Preloader.Start(context.WithoutCancel(ctx), id, texts), len(texts), nil
}
