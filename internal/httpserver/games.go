// internal/httpserver/games.go
//
// Game endpoints:
//   - GET  /games              → snapshots of all games, oldest first
//   - POST /games              → operator creates a game with a secret
//   - GET  /games/{id}         → snapshot (pot, commitment, custody account)
//   - POST /games/{id}/guess   → pay the fee and guess
//   - GET  /games/{id}/payouts → completed payouts, newest first
//   - GET  /games/{id}/reveal  → operator opens the commitment
//   - GET  /balance/me         → caller's ledger balance

package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/potguess/internal/game"
	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/payout"
)

// createGameReq is the payload for POST /games.
// Pointer fields distinguish a missing value from 0.
type createGameReq struct {
	Secret *int `json:"secret"`
}

type guessReq struct {
	Guess *int `json:"guess"`
}

type balanceRes struct {
	Account ledger.Account `json:"account"`
	Balance uint64         `json:"balance"`
	Fee     uint64         `json:"fee"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	ids, err := s.games.IDs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]game.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.engine.Snapshot(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out = append(out, snap)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Secret == nil {
		writeErrorCode(w, http.StatusBadRequest, "secret_required")
		return
	}
	secret, err := game.ParseNumber(*req.Secret)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.engine.Initialize(r.Context(), secret)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info().Str("game_id", snap.ID).Str("operator", currentUser(r).ID).Msg("game created")
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Guess == nil {
		writeErrorCode(w, http.StatusBadRequest, "guess_required")
		return
	}
	guess, err := game.ParseNumber(*req.Guess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	me := currentUser(r)
	res, err := s.engine.Guess(r.Context(), chi.URLParam(r, "id"), ledger.UserAccount(me.ID), guess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGamePayouts lists completed payouts of one game.
// ?limit= caps the number of records (default 50).
func (s *Server) handleGamePayouts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.engine.Snapshot(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.journal.ByGame(r.Context(), id, queryLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]payout.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Status == payout.StatusCompleted {
			out = append(out, rec)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	rev, err := s.engine.Reveal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info().Str("game_id", rev.GameID).Str("operator", currentUser(r).ID).Msg("commitment revealed")
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acct := ledger.UserAccount(currentUser(r).ID)
	bal, err := s.ledger.BalanceOf(r.Context(), acct)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceRes{Account: acct, Balance: bal, Fee: s.engine.Fee()})
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return 0
	}
	return n
}
