package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/i-gras/apiserver/config"
	"github.com/i-gras/apiserver/internal/auth"
	"github.com/i-gras/apiserver/internal/db"
	"github.com/i-gras/apiserver/internal/handlers"
	"github.com/i-gras/apiserver/internal/mq"
	"github.com/i-gras/apiserver/internal/scoring"
	"github.com/i-gras/apiserver/internal/services"
	"github.com/i-gras/apiserver/internal/storage"
	"github.com/i-gras/apiserver/internal/store"
)

// Server wraps the HTTP server and its long-lived dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
}

// New constructs a Server: opens the database, builds the service
// graph, provisions the demo account, and registers routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	secret := strings.TrimSpace(cfg.Auth.Secret)
	if secret == "" {
		return nil, errors.New("AUTH_SECRET is required")
	}

	scorer, err := scoring.NewClient(cfg.Scoring.BaseURL, time.Duration(cfg.Scoring.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	events, err := mq.FromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	materials, err := storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		closeEvents(events)
		return nil, err
	}
	if materials != nil {
		if err := materials.EnsureBucket(ctx); err != nil {
			_ = dbConn.Close()
			closeEvents(events)
			return nil, err
		}
	}

	userRepo := store.NewUserRepository(dbConn)
	scoreRepo := store.NewScoreRepository(dbConn)
	questionRepo := store.NewQuestionRepository(dbConn)

	userService := services.NewUserService(userRepo)
	questionService := services.NewQuestionService(questionRepo)

	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}
	scoreService := services.NewScoreService(scoreRepo, scorer, publisher)

	// Demo account provisioning happens once here, never per request.
	if err := userService.EnsureDemoUser(ctx); err != nil {
		_ = dbConn.Close()
		closeEvents(events)
		return nil, fmt.Errorf("failed to provision demo user: %w", err)
	}

	codec := auth.NewCodec(secret, time.Duration(cfg.Auth.SessionTTLSeconds)*time.Second)
	secureCookies := cfg.Env == "production"

	authHandler := handlers.NewAuthHandler(userService, codec, secureCookies)
	examHandler := handlers.NewExamHandler(scoreService, questionService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/exam", func(r chi.Router) {
		handlers.ExamRouter(r, examHandler, authHandler.RequireSession, handlers.RequireAdmin)
	})
	if materials != nil {
		materialsHandler := handlers.NewMaterialsHandler(materials)
		router.Route("/admin/materials", func(r chi.Router) {
			handlers.MaterialsRouter(r, materialsHandler, authHandler.RequireSession, handlers.RequireAdmin)
		})
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	closeEvents(s.events)
	return s.httpServer.Close()
}

func closeEvents(events *mq.MQ) {
	if events != nil {
		_ = events.Close()
	}
}
