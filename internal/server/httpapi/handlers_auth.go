package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/services"
)

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    token,
		Path:     common.RefreshTokenCookiePath,
		MaxAge:   int(s.opts.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     common.RefreshTokenCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(common.RefreshTokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}

	sess, err := s.svc.Users.Register(r.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, common.ErrConflict) {
		writeJSONError(w, http.StatusConflict, "email already in use")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setRefreshCookie(w, sess.Tokens.RefreshToken)
	writeJSON(w, http.StatusCreated, authResponse{User: sess.User, AccessToken: sess.Tokens.AccessToken})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	sess, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setRefreshCookie(w, sess.Tokens.RefreshToken)
	writeJSON(w, http.StatusOK, authResponse{User: sess.User, AccessToken: sess.Tokens.AccessToken})
}

// handleLogout always clears the cookie. The token is revoked too, so a
// copy taken before logout stops working.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearRefreshCookie(w)
	if err := s.svc.Users.Logout(r.Context(), refreshCookie(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh answers every failure with 401 so clients fall back to
// logging in.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := refreshCookie(r)
	if token == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	access, err := s.svc.Users.Refresh(r.Context(), token)
	if err != nil {
		if !errors.Is(err, common.ErrInvalidToken) {
			s.logger.Warn(r.Context(), "refresh failed", "error", err)
		}
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	user, err := s.svc.Users.Me(r.Context(), id.UserID)
	if errors.Is(err, common.ErrorNotFound) {
		// The account behind a still valid token is gone.
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}
