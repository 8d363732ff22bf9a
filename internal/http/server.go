package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tally/internal/bank"
	"tally/internal/importer"
	applog "tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/realtime"
	"tally/internal/report"
	"tally/internal/services"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the API.
type Deps struct {
	Accounts      *services.AccountService
	Access        *services.AccessService
	Ledger        *services.LedgerService
	Collaborators *services.CollaboratorService
	Records       *services.RecordService
	Reports       *report.Service
	Importer      *importer.Importer
	Bank          *bank.Service
	Hub           *realtime.Hub
	Tokens        *TokenIssuer
	DB            Pinger
	Logger        *applog.Logger

	CORSOrigins       []string
	RequestsPerMinute int
	InviteTTL         time.Duration
	StreamHeartbeat   time.Duration
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			// No WriteTimeout: the change stream stays open for as long as the client listens.
			IdleTimeout: 120 * time.Second,
		},
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		now:      time.Now,
	}
	s.Handler = s.routes()
	if deps.Hub != nil {
		// Shutdown waits for active requests; open change streams would hold it until the deadline.
		s.RegisterOnShutdown(deps.Hub.CloseAll)
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.deps.Logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(CORSMiddleware(s.deps.CORSOrigins))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", s.detector.ExtractClientIP(r), "path", r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
		}))
		r.Use(applog.ComponentMiddleware(applog.ComponentHTTP))

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.With(s.deps.Tokens.OptionalMiddleware).Post("/events", s.handleTrackEvent)

		r.With(s.deps.Tokens.Middleware).Group(func(r chi.Router) {
			r.Get("/me", s.handleMe)
			r.Get("/shared", s.handleListShared)
			r.Post("/invites/accept", s.handleAcceptInvite)
			r.Get("/consents", s.handleListConsents)
			r.Post("/consents", s.handleRecordConsent)
			r.Post("/feedback", s.handleRecordFeedback)
			r.Get("/imports/template/{format}", s.handleImportTemplate)

			r.Route("/ledgers/{ownerID}", func(r chi.Router) {
				r.Use(s.ledgerAccess)

				r.Get("/transactions", s.handleListTransactions)
				r.Post("/transactions", s.handleCreateTransaction)
				r.Get("/transactions/{id}", s.handleGetTransaction)
				r.Patch("/transactions/{id}", s.handleUpdateTransaction)
				r.Delete("/transactions/{id}", s.handleDeleteTransaction)

				r.Get("/categories", s.handleListCategories)
				r.Post("/categories", s.handleCreateCategory)
				r.Get("/categories/{id}", s.handleGetCategory)
				r.Put("/categories/{id}", s.handleUpdateCategory)
				r.Delete("/categories/{id}", s.handleDeleteCategory)

				r.Get("/budgets", s.handleListBudgets)
				r.Post("/budgets", s.handleCreateBudget)
				r.Get("/budgets/{id}", s.handleGetBudget)
				r.Put("/budgets/{id}", s.handleUpdateBudget)
				r.Delete("/budgets/{id}", s.handleDeleteBudget)

				r.Get("/report", s.handleReport)

				r.Post("/imports", s.handleImportFile)
				r.Post("/imports/sheet", s.handleImportSheet)

				r.Get("/changes", s.handleChanges)

				r.Group(func(r chi.Router) {
					r.Use(ownerOnly)

					r.Get("/invites", s.handleListInvites)
					r.Post("/invites", s.handleCreateInvite)
					r.Delete("/invites/{id}", s.handleRevokeInvite)
					r.Get("/collaborators", s.handleListCollaborators)

					r.Post("/bank/link-token", s.handleBankLinkToken)
					r.Get("/bank/items", s.handleListBankItems)
					r.Post("/bank/items", s.handleLinkBankItem)
					r.Delete("/bank/items/{id}", s.handleUnlinkBankItem)
					r.Post("/bank/items/{id}/sync", s.handleSyncBankItem)
				})
			})
		})
	})

	return r
}

type ownerKey struct{}

// ledgerAccess resolves {ownerID} and checks the caller may read it, or
// write when the method mutates.
func (s *Server) ledgerAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := pathID(r, "ownerID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		write := r.Method != http.MethodGet && r.Method != http.MethodHead
		if err := s.deps.Access.Authorize(r.Context(), UserID(r.Context()), ownerID, write); err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, ownerID)
		ctx = applog.WithLedger(ctx, UserID(ctx), ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownerOnly restricts invite and bank management to the ledger owner.
func ownerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) != ledgerOwner(r) {
			ErrorResponse(http.StatusForbidden, "only the ledger owner can do this").Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ledgerOwner returns the ledger resolved by ledgerAccess.
func ledgerOwner(r *http.Request) int64 {
	id, _ := r.Context().Value(ownerKey{}).(int64)
	return id
}

// Shutdown stops background routines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request, rate limit and detection counters.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics, security.DetectionMetrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics(), s.detector.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "database unavailable").Write(w)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
