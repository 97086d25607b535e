// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"khata/internal/middleware/ratelimit"
	"khata/internal/middleware/security"
	"khata/internal/middleware/trace"
	"khata/internal/report"
	"khata/internal/services"
)

// Options carries the knobs NewServer needs beyond the service itself.
type Options struct {
	Addr string

	// Basic auth for the whole API; empty user disables it.
	AuthUser     string
	AuthPassword string
}

type Server struct {
	http.Server

	service *services.LedgerService
	reports *report.Builder

	limiter   *ratelimit.Limiter
	headers   *security.HeadersMiddleware
	tracer    *trace.Middleware
	extractor *security.ClientIPExtractor

	authUser     string
	authPassword string

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, service *services.LedgerService) *Server {
	mux := http.NewServeMux()

	extractor := security.NewClientIPExtractor()

	s := &Server{
		Server: http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		service:      service,
		reports:      report.NewBuilder(service),
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		tracer:       trace.NewMiddleware(extractor.Extract),
		extractor:    extractor,
		authUser:     opts.AuthUser,
		authPassword: opts.AuthPassword,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	api := func(h http.HandlerFunc) http.HandlerFunc { return s.protect(h) }

	mux.HandleFunc("GET /api/transactions", api(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", api(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/date-range", api(s.handleTransactionsByDateRange))
	mux.HandleFunc("GET /api/transactions/customer/{id}", api(s.handleTransactionsByCustomer))
	mux.HandleFunc("GET /api/transactions/customer/{id}/date-range", api(s.handleTransactionsByCustomerAndDateRange))
	mux.HandleFunc("GET /api/transactions/{id}", api(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", api(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", api(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/customers", api(s.handleListCustomers))
	mux.HandleFunc("POST /api/customers", api(s.handleCreateCustomer))
	mux.HandleFunc("GET /api/customers/{id}", api(s.handleGetCustomer))
	mux.HandleFunc("PUT /api/customers/{id}", api(s.handleUpdateCustomer))
	mux.HandleFunc("DELETE /api/customers/{id}", api(s.handleDeleteCustomer))
	mux.HandleFunc("GET /api/customers/{id}/bill", api(s.handleCustomerBill))

	mux.HandleFunc("GET /api/ledger", api(s.handleLedgerView))
	mux.HandleFunc("GET /api/reports/transactions", api(s.handleTransactionsReport))

	return s
}

// protect stacks tracing, rate limiting, security headers and optional basic
// auth around a handler.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	h := http.Handler(next)
	if s.authUser != "" {
		h = s.withBasicAuth(h)
	}
	h = s.headers.Middleware(h)
	h = s.limiter.Middleware(s.extractor.Extract, h)
	h = s.tracer.Middleware(h)
	return h.ServeHTTP
}

func (s *Server) withBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.authUser)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.authPassword)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="khata"`)
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the limiter's cleanup goroutine and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
