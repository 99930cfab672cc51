package api

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
	"github.com/nightwatch-nvr/nightwatch/internal/nvrjson"
)

// caller is the authenticated (or anonymous) identity a request carries
// once authenticate has run, ported from the original's Caller struct.
type caller struct {
	permissions nvrdb.Permissions
	session     *nvrjson.Session
	username    string
}

// authRequest builds the immutable auth context for a request: who's
// asking, from where, with what client. addr is only trusted when the
// service is configured to trust forwarding headers (reverse-proxy
// deployments); otherwise it's left blank rather than accepting a
// client-supplied value at face value.
func (s *Service) authRequest(r *http.Request) nvrdb.AuthRequest {
	var addr string
	if s.cfg.TrustForwardHeaders {
		addr = r.Header.Get("X-Real-IP")
	}
	return nvrdb.AuthRequest{
		WhenSec:   s.db.Clocks().Realtime().Unix(),
		Addr:      addr,
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// isSecure reports whether the request arrived over TLS, trusting the
// X-Forwarded-Proto header only when forwarding headers are trusted.
func (s *Service) isSecure(r *http.Request) bool {
	return s.cfg.TrustForwardHeaders && r.Header.Get("X-Forwarded-Proto") == "https"
}

// extractSID pulls the raw session id out of the request's "s" cookie
// without validating it against the database.
func extractSID(r *http.Request) (nvrdb.RawSessionID, bool) {
	cookie, err := r.Cookie("s")
	if err != nil || cookie.Value == "" {
		return nvrdb.RawSessionID{}, false
	}
	raw, err := base64.RawStdEncoding.DecodeString(cookie.Value)
	if err != nil || len(raw) != 48 {
		return nvrdb.RawSessionID{}, false
	}
	var sid nvrdb.RawSessionID
	copy(sid[:], raw)
	return sid, true
}

// csrfMatches compares the session's stored CSRF token against the
// base64 value a mutating request presented, in constant time.
func csrfMatches(session nvrdb.Session, presented string) bool {
	got, err := base64.RawStdEncoding.DecodeString(presented)
	if err != nil || len(got) != len(session.CSRF) {
		return false
	}
	return subtle.ConstantTimeCompare(got, session.CSRF[:]) == 1
}

// authenticate resolves the caller for a request: a valid session
// cookie wins, then an unauthenticated-permissions fallback (if
// configured), then (for paths that allow anonymous access) the zero
// Permissions, otherwise an error. A database failure while checking the
// cookie is a 500; a missing, revoked or disabled session falls through
// to the anonymous cases.
func (s *Service) authenticate(r *http.Request, unauthPathOK bool) (caller, *apiError) {
	if sid, ok := extractSID(r); ok {
		authReq := s.authRequest(r)
		locked := s.db.Lock()
		sess, user, err := locked.AuthenticateSessionWithUser(r.Context(), authReq, sid)
		locked.Unlock()
		if errors.Is(err, nvrdb.ErrDatabase) {
			return caller{}, errInternal(err.Error())
		}
		if err == nil {
			return caller{
				permissions: sess.Permissions,
				username:    user.Username,
				session: &nvrjson.Session{
					Username: user.Username,
					CSRF:     base64.RawStdEncoding.EncodeToString(sess.CSRF[:]),
				},
			}, nil
		}
		s.logger.Info("authenticate_session failed", "error", err)
	}

	if s.cfg.AllowUnauthenticatedPermissions != nil {
		return caller{permissions: *s.cfg.AllowUnauthenticatedPermissions}, nil
	}

	if unauthPathOK {
		return caller{}, nil
	}

	return caller{}, errUnauthorized("unauthenticated")
}
