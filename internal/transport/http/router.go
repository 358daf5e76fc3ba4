package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig carries the optional pieces of the router.
type RouterConfig struct {
	Logger *zap.SugaredLogger
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// Middleware runs inside the request logger, around every route.
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(enableCors)
	for _, mw := range cfg.Middleware {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// {room} is a room code on the read and join routes and a room id
		// everywhere else.
		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", h.CreateRoom)
			r.Get("/{room}", h.GetRoom)
			r.Post("/{room}/join", h.JoinRoom)

			r.Get("/{room}/players", h.ListPlayers)
			r.Post("/{room}/questions", h.AskQuestion)
			r.Post("/{room}/questions/grade", h.GradeQuestion)
			r.Delete("/{room}/questions/current", h.ResetQuestion)
			r.Get("/{room}/events", h.ServeEvents)
		})
		r.Route("/players/{id}", func(r chi.Router) {
			r.Get("/", h.GetPlayer)
			r.Post("/answer", h.SubmitAnswer)
			r.Patch("/score", h.UpdateScore)
		})
	})
	return r
}

func requestLogger(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				logger.Errorw("request", fields...)
			case status >= 400:
				logger.Warnw("request", fields...)
			default:
				logger.Infow("request", fields...)
			}
		})
	}
}

func enableCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
