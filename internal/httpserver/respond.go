// internal/httpserver/respond.go
//
// JSON response helpers and the mapping from engine errors to status codes.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/robalobadob/potguess/internal/game"
	"github.com/robalobadob/potguess/internal/payout"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeError maps a domain error to a status code and error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ierr *game.InconsistencyError
	switch {
	case errors.As(err, &ierr):
		// Already logged by the engine with full context.
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":    "payout_inconsistency",
			"stage":    string(ierr.Stage),
			"payoutId": ierr.PayoutID,
		})
	case errors.Is(err, game.ErrInvalidInput):
		writeErrorCode(w, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, game.ErrGameNotFound):
		writeErrorCode(w, http.StatusNotFound, "game_not_found")
	case errors.Is(err, payout.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "payout_not_found")
	case errors.Is(err, game.ErrInsufficientFunds):
		writeErrorCode(w, http.StatusPaymentRequired, "insufficient_funds")
	case errors.Is(err, game.ErrPayoutPending):
		writeErrorCode(w, http.StatusConflict, "payout_pending")
	case errors.Is(err, game.ErrPotOverflow):
		writeErrorCode(w, http.StatusConflict, "pot_overflow")
	case errors.Is(err, payout.ErrNotResolvable):
		writeErrorCode(w, http.StatusConflict, "payout_not_resolvable")
	case errors.Is(err, game.ErrTransferFailed):
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("ledger transfer failed")
		writeErrorCode(w, http.StatusBadGateway, "transfer_failed")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeErrorCode(w, http.StatusInternalServerError, "internal")
	}
}
