// Package api exposes the triage session and the stored news over JSON HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/monitoring"
	"github.com/sells-group/trustfeed/internal/pipeline"
	"github.com/sells-group/trustfeed/internal/store"
)

// Session is the triage flow the API drives.
type Session interface {
	Threshold() int
	Refresh(ctx context.Context) (pipeline.RefreshResult, error)
	Pending() []model.Candidate
	Accept(title string) bool
	Reject(title string) bool
	Propose(c model.Candidate) (model.Review, error)
	Verify(ctx context.Context, title string) (model.Review, error)
	Submit(ctx context.Context, title string) (model.Review, error)
	Reviews() []model.Review
}

// NewsReader reads persisted records.
type NewsReader interface {
	GetNews(ctx context.Context, id string) (*model.SubmittedNews, error)
	ListNews(ctx context.Context, filter store.NewsFilter) ([]model.SubmittedNews, error)
	Ping(ctx context.Context) error
}

// StatsCollector produces monitoring snapshots.
type StatsCollector interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.Snapshot, error)
}

// SnapshotCache holds the most recent periodic snapshot, or nil before the
// first one.
type SnapshotCache interface {
	Latest() *monitoring.Snapshot
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps are the collaborators the server needs. Oracle and Snapshots may be
// nil.
type Deps struct {
	Session        Session
	News           NewsReader
	Stats          StatsCollector
	Snapshots      SnapshotCache
	Oracle         HealthChecker
	AllowedOrigins []string
	LookbackHours  int
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// New creates a server.
func New(deps Deps) *Server {
	if deps.LookbackHours <= 0 {
		deps.LookbackHours = 24
	}
	return &Server{deps: deps}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/candidates/refresh", s.handleRefresh)
	r.Get("/candidates", s.handleCandidates)
	r.Post("/decisions", s.handleDecision)
	r.Post("/claims", s.handleClaim)
	r.Post("/verify", s.handleVerify)
	r.Post("/submit", s.handleSubmit)

	r.Get("/news", s.handleListNews)
	r.Get("/news/{id}", s.handleGetNews)
	r.Get("/stats", s.handleStats)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
