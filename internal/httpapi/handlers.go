package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/vocastar/internal/admin"
	"github.com/example/vocastar/internal/ai"
	"github.com/example/vocastar/internal/persistence"
	"github.com/example/vocastar/internal/progress"
	"github.com/example/vocastar/internal/review"
	"github.com/example/vocastar/internal/service"
	"github.com/example/vocastar/internal/speech"
	"github.com/example/vocastar/pkg/models"
)

type learnerHandler func(w http.ResponseWriter, r *http.Request, m *progress.Machine)

type adminHandler func(w http.ResponseWriter, r *http.Request, agg *admin.Aggregator)

// learner resolves the live session of the token's user
func (s *Server) learner(next learnerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := userFrom(r.Context())
		if err != nil {
			writeError(w, service.ErrNotLoggedIn)
			return
		}
		m, err := s.svc.Machine(id)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, m)
	}
}

// admin requires the token's user to be the admin
func (s *Server) admin(next adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := userFrom(r.Context())
		if err != nil {
			writeError(w, service.ErrNotLoggedIn)
			return
		}
		agg, err := s.svc.Admin(id)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, agg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrEmptyID):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotLoggedIn), errors.Is(err, progress.ErrSessionClosed):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden), errors.Is(err, persistence.ErrReservedUser):
		status = http.StatusForbidden
	case errors.Is(err, review.ErrNoData), errors.Is(err, admin.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, progress.ErrStudyIncomplete), errors.Is(err, progress.ErrReviewWeek),
		errors.Is(err, progress.ErrNotReviewWeek), errors.Is(err, review.ErrNotStarted),
		errors.Is(err, review.ErrAlreadySubmitted):
		status = http.StatusConflict
	case ai.IsRateLimited(err):
		status = http.StatusTooManyRequests
	case errors.Is(err, service.ErrSpeechDisabled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("Error handling request: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

type answersRequest struct {
	Answers map[string]string `json:"answers"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	id, role, err := s.svc.Login(r.Context(), req.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	token, err := s.tokens.CreateToken(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": string(role), "id": id})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := userFrom(r.Context())
	if err != nil {
		writeError(w, service.ErrNotLoggedIn)
		return
	}
	if err := s.svc.Logout(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          m.UserID(),
		"progress":    m.Snapshot(),
		"celebrating": m.Celebrating(),
	})
}

func (s *Server) GetLevels(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	type level struct {
		models.Position
		Label string `json:"label"`
	}
	levels := []level{}
	for _, p := range m.Levels() {
		levels = append(levels, level{Position: p, Label: s.svc.Curriculum().WeekInfo(p.Week).Label})
	}
	writeJSON(w, http.StatusOK, levels)
}

func (s *Server) Navigate(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	var req models.Position
	if !decode(w, r, &req) {
		return
	}
	ok, err := m.Navigate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"navigated": ok, "day": m.Day()})
}

func (s *Server) GetDay(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	writeJSON(w, http.StatusOK, m.Day())
}

func (s *Server) CompleteStudy(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	if err := m.CompleteStudy(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.Day())
}

func (s *Server) SubmitMeaning(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	var req answersRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := m.SubmitMeaning(r.Context(), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) SubmitDictation(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	var req answersRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := m.SubmitDictation(r.Context(), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) GetFavorites(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	writeJSON(w, http.StatusOK, m.Favorites())
}

func (s *Server) ToggleFavorite(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	id := r.PathValue("idiomID")
	fav, err := m.ToggleFavorite(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "favorite": fav})
}

func (s *Server) StartReview(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	view, err := m.StartReview()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) GetReview(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	view, err := m.Review()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) SetReviewAnswer(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	var req struct {
		Answer string `json:"answer"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := m.SetReviewAnswer(r.PathValue("idiomID"), req.Answer); err != nil {
		if errors.Is(err, review.ErrNotStarted) {
			writeError(w, err)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) SubmitReview(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	var req answersRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := m.SubmitReview(r.Context(), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) QuitReview(w http.ResponseWriter, r *http.Request, m *progress.Machine) {
	m.QuitReview()
	view, err := m.Review()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) Speech(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	audio, err := s.svc.Speak(r.Context(), text)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(speech.EncodeWAV(audio)); err != nil {
		log.Printf("Error writing audio: %v", err)
	}
}

func (s *Server) PreloadSpeech(w http.ResponseWriter, r *http.Request) {
	id, err := userFrom(r.Context())
	if err != nil {
		writeError(w, service.ErrNotLoggedIn)
		return
	}
	run, count, err := s.svc.PreloadDay(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"run": run, "items": count})
}

func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request, agg *admin.Aggregator) {
	users, err := agg.ListAllUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) AdjustScore(w http.ResponseWriter, r *http.Request, agg *admin.Aggregator) {
	var req struct {
		Delta int `json:"delta"`
	}
	if !decode(w, r, &req) {
		return
	}
	score, err := agg.AdjustScore(r.Context(), r.PathValue("userID"), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"score": score})
}

func (s *Server) SetMaxUnlocked(w http.ResponseWriter, r *http.Request, agg *admin.Aggregator) {
	var req models.Position
	if !decode(w, r, &req) {
		return
	}
	if !req.Valid() {
		http.Error(w, "invalid position", http.StatusBadRequest)
		return
	}
	if err := agg.SetMaxUnlocked(r.Context(), r.PathValue("userID"), req.Week, req.Day); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) UserFavorites(w http.ResponseWriter, r *http.Request, agg *admin.Aggregator) {
	adminID, _ := userFrom(r.Context())
	favs, err := s.svc.AdminFavorites(r.Context(), adminID, r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}
