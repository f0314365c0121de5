// internal/httpserver/admin.go
//
// Operator endpoints under /admin:
//   - POST /admin/deposit               → mint funds into a user's account
//   - GET  /admin/payouts/unresolved    → payouts awaiting reconciliation
//   - POST /admin/payouts/{id}/resolve  → close a reconciled (inconsistent) payout
//   - POST /admin/payouts/{id}/retry    → settle a payout whose custody debit failed

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/users"
)

type depositReq struct {
	UserID string `json:"userId"`
	Amount uint64 `json:"amount"`
}

type resolveReq struct {
	Note string `json:"note"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if s.minter == nil {
		writeErrorCode(w, http.StatusNotImplemented, "deposits_disabled")
		return
	}
	var req depositReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Amount == 0 {
		writeErrorCode(w, http.StatusBadRequest, "amount_required")
		return
	}
	u, err := s.users.ByID(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeErrorCode(w, http.StatusNotFound, "user_not_found")
			return
		}
		s.writeError(w, r, err)
		return
	}
	acct := ledger.UserAccount(u.ID)
	if err := s.minter.Mint(r.Context(), acct, req.Amount); err != nil {
		if errors.Is(err, ledger.ErrAmountTooLarge) {
			writeErrorCode(w, http.StatusBadRequest, "amount_too_large")
			return
		}
		s.writeError(w, r, err)
		return
	}
	bal, err := s.ledger.BalanceOf(r.Context(), acct)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info().
		Str("operator", currentUser(r).ID).
		Str("account", string(acct)).
		Uint64("amount", req.Amount).
		Msg("deposit")
	writeJSON(w, http.StatusOK, balanceRes{Account: acct, Balance: bal, Fee: s.engine.Fee()})
}

func (s *Server) handleUnresolved(w http.ResponseWriter, r *http.Request) {
	recs, err := s.journal.Unresolved(r.Context(), queryLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	rec, err := s.journal.Resolve(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info().Str("payout_id", rec.ID).Str("operator", currentUser(r).ID).Msg("payout resolved")
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.RetryPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info().Str("payout_id", res.PayoutID).Str("operator", currentUser(r).ID).Msg("payout retried")
	writeJSON(w, http.StatusOK, res)
}
