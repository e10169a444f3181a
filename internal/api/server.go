// Package api is the HTTP boundary of the service. Identity comes from an
// upstream gateway through the X-Provider-ID header.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/maaaruch/shallweeat-bot/internal/board"
	"github.com/maaaruch/shallweeat-bot/internal/domain"
	"github.com/maaaruch/shallweeat-bot/internal/recommend"
	"github.com/maaaruch/shallweeat-bot/internal/vote"
)

const (
	HeaderProviderID = "X-Provider-ID"
	HeaderUserName   = "X-User-Name"
)

type Services struct {
	Boards    *board.Service
	Recommend *recommend.Engine
	Ledger    *vote.Ledger
	Tally     *vote.Tally
}

type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int
}

type Server struct {
	services  Services
	router    chi.Router
	validator *requestValidator
	logger    *slog.Logger
	opts      Options
}

func NewServer(services Services, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		services:  services,
		router:    chi.NewRouter(),
		validator: newValidator(),
		logger:    logger,
		opts:      opts,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", HeaderProviderID, HeaderUserName},
			MaxAge:         300,
		}))
	}
	if s.opts.RateLimitPerMinute > 0 {
		s.router.Use(httprate.LimitByIP(s.opts.RateLimitPerMinute, time.Minute))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/guest/recommend", s.handleGuestRecommend)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/boards", s.handleListBoards)
			r.Post("/boards", s.handleCreateBoard)
			r.Post("/teamboards", s.handleCreateTeamBoard)
			r.Post("/teamboards/join", s.handleJoinTeamBoard)

			r.Route("/boards/{boardID}", func(r chi.Router) {
				r.Use(s.requireBoardAccess)

				r.Patch("/", s.handleRenameBoard)
				r.Delete("/", s.handleDeleteBoard)

				r.Post("/recommend", s.handleRecommend)
				r.Get("/menus", s.handleBoardMenus)
				r.Post("/menus", s.handleAddBoardMenus)
				r.Get("/menus/{menuID}", s.handleMenuDetails)
				r.Get("/categories", s.handleBoardCategories)

				r.Post("/votes", s.handleCastVotes)
				r.Put("/votes", s.handleReplaceVotes)
				r.Get("/votes/results", s.handleVoteResults)
				r.Get("/votes/quorum", s.handleQuorum)
			})

			r.Delete("/votes/{voteID}", s.handleDeleteVote)
		})
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type userKey struct{}

// requireUser resolves the caller and records them on first sight.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerID := r.Header.Get(HeaderProviderID)
		if providerID == "" {
			errorResponse(w, http.StatusUnauthorized, "missing "+HeaderProviderID+" header", s.logger)
			return
		}
		u, err := s.services.Boards.EnsureUser(r.Context(), providerID, r.Header.Get(HeaderUserName))
		if err != nil {
			handleError(w, err, s.logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

// requireBoardAccess admits only the board's owner and members. Owner-only
// writes are checked again by the board service.
func (s *Server) requireBoardAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		boardID, err := pathID(r, "boardID")
		if err != nil {
			handleError(w, err, s.logger)
			return
		}
		if _, err := s.services.Boards.Access(r.Context(), userFrom(r.Context()).ID, boardID); err != nil {
			handleError(w, err, s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey{}).(*domain.User)
	return u
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	success(w, map[string]string{"status": "ok"}, s.logger)
}
