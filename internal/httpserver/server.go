// internal/httpserver/server.go
//
// HTTP server wiring for the pot-guessing game.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     request logging).
//   - Public endpoints: "/", "/health", game snapshots and payout history.
//   - Player endpoints (require auth): guess, balance.
//   - Operator endpoints (require operator role): create game, reveal,
//     deposit, payout reconciliation.
//   - Auth endpoints: /auth/*.
//
// Notes:
//   - The engine is the only writer of game state; handlers translate JSON
//     into engine calls and engine errors into status codes.
//   - CORS is origin-aware and credentials-enabled (so cookies work).

package httpserver

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/robalobadob/potguess/internal/config"
	"github.com/robalobadob/potguess/internal/game"
	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/payout"
	"github.com/robalobadob/potguess/internal/store"
	"github.com/robalobadob/potguess/internal/users"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Config  config.Config
	Engine  *game.Engine
	Games   store.Store
	Ledger  ledger.Ledger
	Minter  ledger.Minter // optional; enables deposits and signup bonus
	Journal payout.Journal
	DB      *sql.DB // users table
	Logger  zerolog.Logger
}

// Server bundles router and dependencies.
type Server struct {
	r       *chi.Mux
	http    *http.Server
	cfg     config.Config
	engine  *game.Engine
	games   store.Store
	ledger  ledger.Ledger
	minter  ledger.Minter
	journal payout.Journal
	users   *users.Store
	logger  zerolog.Logger
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	s := &Server{
		r:       chi.NewRouter(),
		cfg:     d.Config,
		engine:  d.Engine,
		games:   d.Games,
		ledger:  d.Ledger,
		minter:  d.Minter,
		journal: d.Journal,
		users:   users.NewStore(d.DB),
		logger:  d.Logger,
	}

	s.http = &http.Server{Handler: s.r, ReadHeaderTimeout: 5 * time.Second}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger(s.logger))         // one line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(s.cfg.ClientOrigin))        // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "potguess",
			"fee":     s.engine.Fee(),
			"endpoints": []string{
				"/health", "GET /games", "POST /games", "GET /games/{id}",
				"POST /games/{id}/guess", "GET /games/{id}/payouts", "/auth/*",
			},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	// Auth
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)
	s.r.With(s.requireAuth).Get("/auth/me", s.handleMe)

	// Games
	s.r.Route("/games", func(r chi.Router) {
		r.Get("/", s.handleListGames)
		r.With(s.requireAuth, s.requireOperator).Post("/", s.handleCreateGame)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetGame)
			r.Get("/payouts", s.handleGamePayouts)
			r.With(s.requireAuth).Post("/guess", s.handleGuess)
			r.With(s.requireAuth, s.requireOperator).Get("/reveal", s.handleReveal)
		})
	})

	// Player balance
	s.r.With(s.requireAuth).Get("/balance/me", s.handleBalance)

	// Operator administration
	s.r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAuth, s.requireOperator)
		r.Post("/deposit", s.handleDeposit)
		r.Get("/payouts/unresolved", s.handleUnresolved)
		r.Post("/payouts/{id}/resolve", s.handleResolve)
		r.Post("/payouts/{id}/retry", s.handleRetry)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.http.Serve(ln)
}

// Shutdown gracefully stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }
