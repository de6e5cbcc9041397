package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "registro/internal/log"
	"registro/internal/query"
	"registro/internal/services"
	"registro/internal/session"
)

// Server wires the ledger browsing API: filtered listing with cached
// totals, session-backed filter restoration, and transaction mutations.
type Server struct {
	http.Server
	service  *services.TransactionService
	sessions *session.Store

	defaultPeriod   query.PeriodKey
	defaultPageSize int
	maxPageSize     int

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once

	// now is injectable for deterministic filter normalization in tests.
	now func() time.Time
}

// Options carries the tunable knobs the server needs from configuration.
type Options struct {
	Addr            string
	DefaultPeriod   query.PeriodKey
	DefaultPageSize int
	MaxPageSize     int
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options, service *services.TransactionService, sessions *session.Store) *Server {
	mux := http.NewServeMux()

	if opts.DefaultPeriod == "" {
		opts.DefaultPeriod = query.DefaultPeriodKey
	}
	if opts.DefaultPageSize < 1 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}

	logger := applog.New(applog.Config{Component: applog.ComponentHTTP})

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: applog.Middleware(logger)(mux),
		},
		service:         service,
		sessions:        sessions,
		defaultPeriod:   opts.DefaultPeriod,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
		rateLimiter:     newRateLimiter(),
		now:             time.Now,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/transactions", s.withSecurityHeaders(s.handleTransactions))
	mux.HandleFunc("/transactions/", s.withSecurityHeaders(s.handleTransactionByID))
	mux.HandleFunc("/filters/clear", s.withSecurityHeaders(s.handleClearFilter))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
