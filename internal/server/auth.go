package server

import (
	"net/http"
	"net/url"

	"github.com/jingjing529/ai-calendar-agent/internal/google"
	"github.com/jingjing529/ai-calendar-agent/internal/instrumentation"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
)

// Sign-in error codes passed to the landing page as ?error=.
const (
	authErrMissingCode   = "missing_code"
	authErrInvalidState  = "invalid_state"
	authErrTokenExchange = "token_exchange_failed"
	authErrSession       = "session_failed"
)

// handleAuthStart redirects the browser to Google consent.
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.NewState(w)
	if err != nil {
		s.loggerFor(r).Error("failed to create oauth state", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}
	http.Redirect(w, r, google.AuthURL(s.oauth, state), http.StatusFound)
}

// handleAuthCallback completes sign-in and stores the access token.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.loggerFor(r)
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultDenied)
		logger.Warn("google sign-in denied", "reason", e)
		s.failAuth(w, r, e)
		return
	}

	if err := s.sessions.VerifyState(w, r, q.Get("state")); err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		logger.Warn("oauth state mismatch", logging.Err(err))
		s.failAuth(w, r, authErrInvalidState)
		return
	}

	code := q.Get("code")
	if code == "" {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.failAuth(w, r, authErrMissingCode)
		return
	}

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		logger.Error("failed to exchange auth code", logging.Err(err))
		s.failAuth(w, r, authErrTokenExchange)
		return
	}

	if err := s.sessions.SetAccessToken(w, tok.AccessToken, tok.Expiry); err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		logger.Error("failed to store access token", logging.Err(err))
		s.failAuth(w, r, authErrSession)
		return
	}

	s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	logger.Info("google sign-in completed", "token", logging.SanitizeToken(tok.AccessToken))
	http.Redirect(w, r, s.redirectTarget(s.successPath), http.StatusFound)
}

func (s *Server) failAuth(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, s.redirectTarget("/?error="+url.QueryEscape(code)), http.StatusFound)
}

// handleLogout clears the session.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Clear(w)
	writeJSON(w, http.StatusOK, apiResponse{Success: true})
}
