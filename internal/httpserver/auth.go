// internal/httpserver/auth.go
//
// Authentication: signup/login/logout handlers, JWT + cookie handling and
// the middleware that gates player and operator routes.
//
// Notes:
//   - Signup always creates a player; operators are promoted from the CLI.
//   - Tokens are HS256 JWTs carrying id/username; the role is always re-read
//     from the users table so a demoted operator loses access immediately.
//   - The token is returned in the JSON body (API clients) and set as an
//     HttpOnly cookie (browsers).

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/robalobadob/potguess/internal/ledger"
	"github.com/robalobadob/potguess/internal/users"
)

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Role     users.Role `json:"role"`
}

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

func currentUser(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authRes struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Role     users.Role `json:"role"`
	Token    string     `json:"token"`
}

// handleSignup creates a player, funds the signup bonus, and signs a JWT.
// A bonus that cannot be minted rolls the signup back so it can be retried.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.users.Create(r.Context(), body.Username, body.Password)
	switch {
	case errors.Is(err, users.ErrUsernameTaken):
		writeErrorCode(w, http.StatusConflict, "username_taken")
		return
	case errors.Is(err, users.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_signup", "detail": err.Error()})
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("signup")
		writeErrorCode(w, http.StatusInternalServerError, "signup_failed")
		return
	}
	if s.cfg.SignupBonus > 0 && s.minter != nil {
		if err := s.minter.Mint(r.Context(), ledger.UserAccount(u.ID), s.cfg.SignupBonus); err != nil {
			log := s.logger.Error().Err(err).Str("user", u.ID).Uint64("bonus", s.cfg.SignupBonus)
			if derr := s.users.Delete(context.WithoutCancel(r.Context()), u.ID); derr != nil {
				log = log.AnErr("rollback", derr)
			}
			log.Msg("signup bonus not minted, signup rolled back")
			writeErrorCode(w, http.StatusInternalServerError, "signup_bonus_failed")
			return
		}
	}
	s.logger.Info().Str("user", u.ID).Msg("user signed up")
	s.issueToken(w, u, http.StatusCreated)
}

// handleLogin authenticates a user and signs a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	u, err := s.users.ByUsername(r.Context(), body.Username)
	if err != nil || !users.CheckPassword(u.PasswordHash, body.Password) {
		writeErrorCode(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	s.issueToken(w, u, http.StatusOK)
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (s *Server) issueToken(w http.ResponseWriter, u *users.User, status int) {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		writeErrorCode(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.setAuthCookie(w, tok, exp)
	writeJSON(w, status, authRes{ID: u.ID, Username: u.Username, Role: u.Role, Token: tok})
}

// signJWT creates an HS256 JWT with id/username and the configured expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	exp := time.Now().Add(time.Duration(s.cfg.JWTExpiresDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

// setAuthCookie writes the auth token cookie with appropriate security attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, s.cookie(token, exp, 0))
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie("", time.Time{}, -1))
}

func (s *Server) cookie(value string, exp time.Time, maxAge int) *http.Cookie {
	secure := s.cfg.Production()
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
		MaxAge:   maxAge,
	}
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(s.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := s.bearerOrCookie(r)
		if tokenStr == "" {
			writeErrorCode(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			writeErrorCode(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		id, _ := claims["id"].(string)
		if id == "" {
			writeErrorCode(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		// Ensure user still exists; role comes from the row, not the token.
		u, err := s.users.ByID(r.Context(), id)
		if err != nil {
			writeErrorCode(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: u.ID, Username: u.Username, Role: u.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOperator must run after requireAuth.
func (s *Server) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if me := currentUser(r); me == nil || me.Role != users.RoleOperator {
			writeErrorCode(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
