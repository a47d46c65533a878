package server

import (
	"interest-chat/auth"
	"interest-chat/observability"
	"interest-chat/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	CORSAllowedOrigins []string
	SendRateLimit      int
	SendRateWindow     time.Duration
}

func DefaultOptions() Options {
	return Options{
		CORSAllowedOrigins: []string{"*"},
		SendRateLimit:      60,
		SendRateWindow:     time.Minute,
	}
}

// Server exposes the REST API and mounts the realtime gateway on /ws.
type Server struct {
	dispatch  services.IDispatchService
	interests services.IInterestService
	accounts  services.IAuthService
	content   ContentManager
	issuer    *auth.TokenIssuer
	gateway   http.Handler
	health    *HealthReporter
	options   Options
	log       *slog.Logger
}

func NewServer(
	log *slog.Logger,
	dispatch services.IDispatchService,
	interests services.IInterestService,
	accounts services.IAuthService,
	content ContentManager,
	issuer *auth.TokenIssuer,
	gateway http.Handler,
	health *HealthReporter,
	options Options,
) *Server {
	return &Server{
		dispatch:  dispatch,
		interests: interests,
		accounts:  accounts,
		content:   content,
		issuer:    issuer,
		gateway:   gateway,
		health:    health,
		options:   options,
		log:       log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.options.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(s.issuer, s.fail))

		if s.gateway != nil {
			r.Get("/ws", s.gateway.ServeHTTP)
		}

		r.Route("/api", func(r chi.Router) {
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)

			r.Route("/messages", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.sendLimiter())
					r.Post("/", s.handleSendMessage)
					r.Post("/important", s.handleSendImportant)
					r.Post("/share-entry", s.handleShareEntry)
				})
				r.Get("/{interestID}", s.handleListMessages)
				r.Get("/{interestID}/search", s.handleSearchMessages)
			})
			r.Get("/user-count/{interestID}", s.handleMemberCount)

			r.Get("/interests", s.handleListInterests)
			r.Post("/interests", s.handleCreateInterest)
			r.Put("/interests/me", s.handleJoinInterests)
			r.Get("/users/me", s.handleProfile)
			r.Delete("/users/me", s.handleDeactivate)

			r.Route("/learn/categories", func(r chi.Router) {
				r.Get("/", s.handleListCategories)
				r.Post("/", s.handleCreateCategory)
				r.Post("/{categoryID}/subcategories", s.handleAddSubCategory)
				r.Post("/{categoryID}/subcategories/{subCategoryID}/topics", s.handleAddTopic)
				r.Post("/{categoryID}/subcategories/{subCategoryID}/topics/{topicID}/entries", s.handleAddEntry)
				r.Delete("/{categoryID}/subcategories/{subCategoryID}/topics/{topicID}/entries/{entryID}", s.handleDeleteEntry)
			})
		})
	})
	return r
}

func (s *Server) sendLimiter() func(http.Handler) http.Handler {
	if s.options.SendRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.options.SendRateLimit,
		s.options.SendRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, Response{Success: false, Message: "Too many requests"})
		}),
	)
}

// instrument records latency per route pattern, not per raw path.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.ObserveHTTPRequest(r.Method, route, status, start)
	})
}
