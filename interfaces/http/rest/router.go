package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/dharun-sukumar/Audio-Rag/application/commands/bus"
	querybus "github.com/dharun-sukumar/Audio-Rag/application/queries/bus"
	"github.com/dharun-sukumar/Audio-Rag/interfaces/http/rest/handlers"
	"github.com/dharun-sukumar/Audio-Rag/interfaces/http/rest/middleware"
	"github.com/dharun-sukumar/Audio-Rag/pkg/auth"
	"github.com/dharun-sukumar/Audio-Rag/pkg/common"
	appErrors "github.com/dharun-sukumar/Audio-Rag/pkg/errors"
	"github.com/dharun-sukumar/Audio-Rag/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	readyTimeout       = 2 * time.Second
	rateLimitPruneTick = time.Minute
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins    []string
	MaxUploadBytes int64
	RateLimitRPM   int
	Debug          bool
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	resolver   middleware.IdentityResolver
	ready      Pinger
	metrics    *observability.Collector
	opts       Options
	limiter    *auth.IPRateLimiter
	errs       *appErrors.ErrorHandler
	logger     *zap.Logger
}

// NewRouter creates a new router instance. metrics may be nil.
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	resolver middleware.IdentityResolver,
	ready Pinger,
	metrics *observability.Collector,
	opts Options,
	logger *zap.Logger,
) *Router {
	rt := &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		resolver:   resolver,
		ready:      ready,
		metrics:    metrics,
		opts:       opts,
		errs:       appErrors.NewErrorHandler(logger, opts.Debug),
		logger:     logger,
	}
	if opts.RateLimitRPM > 0 {
		rt.limiter = auth.NewIPRateLimiter(opts.RateLimitRPM)
	}
	return rt
}

// Start runs background upkeep of the router until ctx ends.
func (rt *Router) Start(ctx context.Context) {
	if rt.limiter != nil {
		go rt.limiter.PruneEvery(ctx, rateLimitPruneTick)
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errs.Middleware)
	router.Use(middleware.Logger(rt.logger, rt.metrics))

	origins := rt.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", middleware.GuestIDHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	authHandler := handlers.NewAuthHandler(rt.commandBus, rt.queryBus, rt.errs, rt.logger)
	memoryHandler := handlers.NewMemoryHandler(rt.commandBus, rt.queryBus, rt.errs, rt.opts.MaxUploadBytes, rt.logger)
	tagHandler := handlers.NewTagHandler(rt.commandBus, rt.queryBus, rt.errs, rt.logger)
	conversationHandler := handlers.NewConversationHandler(rt.commandBus, rt.queryBus, rt.errs, rt.logger)
	searchHandler := handlers.NewSearchHandler(rt.queryBus, rt.errs, rt.logger)
	calendarHandler := handlers.NewCalendarHandler(rt.queryBus, rt.errs, rt.logger)
	askHandler := handlers.NewAskHandler(rt.queryBus, rt.errs, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, rt.opts.RateLimitRPM, rt.errs, rt.logger))
		}
		r.Use(middleware.Identify(rt.resolver, rt.errs, rt.logger))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/me", authHandler.Me)
			r.With(middleware.RequireAuthenticated(rt.errs)).Post("/merge-guest", authHandler.MergeGuest)
		})

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", memoryHandler.Upload)
			r.Post("/text", memoryHandler.CreateText)
			r.Get("/", memoryHandler.List)
			r.Get("/{memoryID}", memoryHandler.Get)
			r.Patch("/{memoryID}", memoryHandler.Update)
			r.Delete("/{memoryID}", memoryHandler.Delete)
			r.Post("/{memoryID}/reprocess", memoryHandler.Reprocess)
			r.Get("/{memoryID}/audio-url", memoryHandler.AudioURL)
			r.Get("/{memoryID}/video-url", memoryHandler.VideoURL)
			r.Get("/{memoryID}/media/{kind}", memoryHandler.StreamMedia)
			r.Get("/{memoryID}/text", memoryHandler.Text)
			r.Get("/{memoryID}/transcript", memoryHandler.Transcript)
			r.Post("/{memoryID}/tags/{tagID}", memoryHandler.AttachTag)
			r.Delete("/{memoryID}/tags/{tagID}", memoryHandler.DetachTag)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", tagHandler.List)
			r.Post("/", tagHandler.Create)
			r.Get("/{tagID}", tagHandler.Get)
			r.Patch("/{tagID}", tagHandler.Update)
			r.Delete("/{tagID}", tagHandler.Delete)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Get("/{conversationID}", conversationHandler.Get)
			r.Patch("/{conversationID}", conversationHandler.Rename)
			r.Delete("/{conversationID}", conversationHandler.Delete)
			r.Post("/{conversationID}/messages", conversationHandler.AddMessage)
			r.Get("/{conversationID}/messages", conversationHandler.Messages)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/date/{date}", calendarHandler.Day)
			r.Post("/date-range", calendarHandler.Range)
			r.Get("/conversations/{date}", calendarHandler.Conversations)
			r.Get("/recordings/{date}", calendarHandler.Recordings)
		})

		r.Get("/search", searchHandler.Search)
		r.Post("/ask", askHandler.Ask)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports 503 until the store answers.
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := rt.ready.Ping(ctx); err != nil {
			rt.logger.Warn("readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
