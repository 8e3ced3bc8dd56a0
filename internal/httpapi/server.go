// Package httpapi exposes learner and admin operations as a JSON HTTP API.
package httpapi

import (
	"net/http"

	"github.com/example/vocastar/internal/service"
	"github.com/rs/cors"
)

// Server holds the HTTP handlers
type Server struct {
	svc     *service.Service
	tokens  *Tokens
	origins []string
}

// NewServer creates a new server
func NewServer(svc *service.Service, tokens *Tokens, origins []string) *Server {
	return &Server{svc: svc, tokens: tokens, origins: origins}
}

// Handler returns the routed, CORS-wrapped handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/login", s.Login)
	mux.HandleFunc("POST /api/logout", s.authMiddleware(s.Logout))

	// Learner
	mux.HandleFunc("GET /api/progress", s.authMiddleware(s.learner(s.GetProgress)))
	mux.HandleFunc("GET /api/levels", s.authMiddleware(s.learner(s.GetLevels)))
	mux.HandleFunc("POST /api/navigate", s.authMiddleware(s.learner(s.Navigate)))
	mux.HandleFunc("GET /api/day", s.authMiddleware(s.learner(s.GetDay)))
	mux.HandleFunc("POST /api/study/complete", s.authMiddleware(s.learner(s.CompleteStudy)))
	mux.HandleFunc("POST /api/quiz/meaning", s.authMiddleware(s.learner(s.SubmitMeaning)))
	mux.HandleFunc("POST /api/quiz/dictation", s.authMiddleware(s.learner(s.SubmitDictation)))
	mux.HandleFunc("GET /api/favorites", s.authMiddleware(s.learner(s.GetFavorites)))
	mux.HandleFunc("POST /api/favorites/{idiomID}", s.authMiddleware(s.learner(s.ToggleFavorite)))

	// Review
	mux.HandleFunc("POST /api/review/start", s.authMiddleware(s.learner(s.StartReview)))
	mux.HandleFunc("GET /api/review", s.authMiddleware(s.learner(s.GetReview)))
	mux.HandleFunc("PUT /api/review/answers/{idiomID}", s.authMiddleware(s.learner(s.SetReviewAnswer)))
	mux.HandleFunc("POST /api/review/submit", s.authMiddleware(s.learner(s.SubmitReview)))
	mux.HandleFunc("POST /api/review/quit", s.authMiddleware(s.learner(s.QuitReview)))

	// Speech
	mux.HandleFunc("GET /api/speech", s.authMiddleware(s.Speech))
	mux.HandleFunc("POST /api/speech/preload", s.authMiddleware(s.PreloadSpeech))

	// Admin
	mux.HandleFunc("GET /api/admin/users", s.authMiddleware(s.admin(s.ListUsers)))
	mux.HandleFunc("POST /api/admin/users/{userID}/score", s.authMiddleware(s.admin(s.AdjustScore)))
	mux.HandleFunc("PUT /api/admin/users/{userID}/unlock", s.authMiddleware(s.admin(s.SetMaxUnlocked)))
	mux.HandleFunc("GET /api/admin/users/{userID}/favorites", s.authMiddleware(s.admin(s.UserFavorites)))

	return cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept", "Origin"},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(mux)
}
