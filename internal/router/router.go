package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"homebase-backend/internal/handlers"
	"homebase-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	assistantHandler *handlers.AssistantHandler,
	wsHandler http.HandlerFunc,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Chat rate limiter (30 turns/min per user)
	chatLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Assistant Routes ────
		r.Route("/assistant", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(chatLimiter.Middleware).Post("/chat", assistantHandler.Chat)
			r.Get("/sessions/{id}/messages", assistantHandler.History)
		})

		// ──── WebSocket ────
		if wsHandler != nil {
			r.Get("/ws", wsHandler)
		}
	})

	return r
}
