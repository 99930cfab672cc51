package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
	"github.com/nightwatch-nvr/nightwatch/internal/nvrjson"
)

// serveLogin handles POST /api/login, ported from login(): verifies
// username/password, mints a session, and sets the "s" cookie.
func (s *Service) serveLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errMethodNotAllowed("POST expected"))
		return
	}
	var req nvrjson.LoginRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		writeError(w, apiErr)
		return
	}

	host := r.Header.Get("Host")
	if host == "" {
		host = r.Host
	}
	if host == "" {
		writeError(w, errBadRequest("missing Host header"))
		return
	}
	domain := host
	if colon := strings.IndexByte(host, ':'); colon >= 0 {
		domain = host[:colon]
	}

	isSecure := s.isSecure(r)
	flags := nvrdb.FlagHTTPOnly | nvrdb.FlagSameSite | nvrdb.FlagSameSiteStrict
	if isSecure {
		flags |= nvrdb.FlagSecure
	}

	authReq := s.authRequest(r)
	locked := s.db.Lock()
	raw, _, err := locked.LoginByPassword(r.Context(), authReq, req.Username, req.Password, flags, domain)
	locked.Unlock()
	if err != nil {
		writeError(w, errUnauthorized(err.Error()))
		return
	}

	encoded := base64.RawStdEncoding.EncodeToString(raw[:])
	cookie := &http.Cookie{
		Name:     "s",
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   2147483648,
	}
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}

// serveLogout handles POST /api/logout, ported from logout(): if a
// valid session cookie is present and its CSRF token matches the
// request body, the session is revoked. A valid session with a
// mismatched CSRF token is a 400 and leaves both session and cookie in
// place; otherwise any presented cookie is cleared (including one that
// names no usable session), and a request without a cookie gets no
// Set-Cookie.
func (s *Service) serveLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errMethodNotAllowed("POST expected"))
		return
	}
	var req struct {
		CSRF string `json:"csrf"`
	}
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		writeError(w, apiErr)
		return
	}

	if sid, ok := extractSID(r); ok {
		locked := s.db.Lock()
		sess, err := locked.AuthenticateSession(r.Context(), sid)
		if err == nil {
			if !csrfMatches(sess, req.CSRF) {
				locked.Unlock()
				writeError(w, errBadRequest("logout with incorrect csrf token"))
				return
			}
			if revokeErr := locked.RevokeSession(r.Context(), sid, nvrdb.RevocationLoggedOut); revokeErr != nil {
				s.logger.Warn("revoke session failed", "error", revokeErr)
			} else {
				s.publishHubEvent(HubEventSession, map[string]string{"reason": "logged_out"})
			}
		} else {
			s.logger.Warn("logout failed", "error", err)
		}
		locked.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "s", Value: "", Path: "/", MaxAge: -1})
	}
	w.WriteHeader(http.StatusNoContent)
}

// serveRequest handles GET /api/request, an echo endpoint useful for
// diagnosing reverse-proxy header forwarding, ported from request().
func (s *Service) serveRequest(w http.ResponseWriter, r *http.Request) {
	authReq := s.authRequest(r)
	body := fmt.Sprintf(
		"when: %s\nhost: %s\naddr: %s\nuser_agent: %s\nsecure: %t",
		time.Unix(authReq.WhenSec, 0).UTC().Format(time.RFC3339),
		r.Host, authReq.Addr, authReq.UserAgent, s.isSecure(r))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
