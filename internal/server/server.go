// Package server exposes the market engine over HTTP and WebSocket: public
// endpoints for quoting, trading and browsing, and admin endpoints for the
// market lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foresightlabs/foresight/internal/server/handler"
	"github.com/foresightlabs/foresight/internal/server/middleware"
	"github.com/foresightlabs/foresight/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// AdminKey guards operator endpoints. AdminKeyHash, when set, is a
	// bcrypt hash of the key and takes precedence. Both empty disables the
	// guard.
	AdminKey     string
	AdminKeyHash string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Trades      *handler.TradeHandler
	Settlements *handler.SettlementHandler
	Users       *handler.UserHandler
	Audit       *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server for the market engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, admin auth on operator routes) and
// attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	admin := middleware.Admin(cfg.AdminKey, cfg.AdminKeyHash)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.Health)

	// Market endpoints.
	mux.Handle("POST /api/markets", admin(http.HandlerFunc(handlers.Markets.CreateMarket)))
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/prices", handlers.Markets.GetPrices)
	mux.HandleFunc("GET /api/markets/{id}/quote", handlers.Trades.QuoteTrade)
	mux.HandleFunc("GET /api/markets/{id}/trades", handlers.Markets.ListMarketTrades)
	mux.Handle("POST /api/markets/{id}/close", admin(http.HandlerFunc(handlers.Markets.CloseMarket)))

	// Settlement endpoints.
	mux.Handle("POST /api/markets/{id}/settle", admin(http.HandlerFunc(handlers.Settlements.SettleMarket)))
	mux.HandleFunc("GET /api/markets/{id}/settlement", handlers.Settlements.GetSettlement)

	// Trade execution.
	mux.HandleFunc("POST /api/trades", handlers.Trades.ExecuteTrade)

	// User endpoints.
	mux.HandleFunc("POST /api/users", handlers.Users.RegisterUser)
	mux.HandleFunc("GET /api/users/{id}", handlers.Users.GetUser)
	mux.HandleFunc("GET /api/users/{id}/positions", handlers.Users.ListPositions)
	mux.HandleFunc("GET /api/users/{id}/trades", handlers.Users.ListTrades)
	mux.HandleFunc("GET /api/users/{id}/reputation", handlers.Users.ListReputation)
	mux.HandleFunc("GET /api/users/{id}/spend", handlers.Users.GetSpend)
	mux.HandleFunc("GET /api/leaderboard", handlers.Users.Leaderboard)

	// Audit trail.
	mux.Handle("GET /api/audit", admin(http.HandlerFunc(handlers.Audit.ListAudit)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
