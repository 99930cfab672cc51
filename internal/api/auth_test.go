package api

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

func TestExtractSIDMissingCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/", nil)
	if _, ok := extractSID(r); ok {
		t.Error("expected no session id without a cookie")
	}
}

func TestExtractSIDRoundTrip(t *testing.T) {
	var raw nvrdb.RawSessionID
	for i := range raw {
		raw[i] = byte(i)
	}
	r := httptest.NewRequest(http.MethodGet, "/api/", nil)
	r.AddCookie(&http.Cookie{Name: "s", Value: base64.RawStdEncoding.EncodeToString(raw[:])})

	got, ok := extractSID(r)
	if !ok {
		t.Fatal("expected a session id to be extracted")
	}
	if got != raw {
		t.Errorf("got = %v, want %v", got, raw)
	}
}

func TestExtractSIDWrongLength(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/", nil)
	r.AddCookie(&http.Cookie{Name: "s", Value: base64.RawStdEncoding.EncodeToString([]byte("too short"))})
	if _, ok := extractSID(r); ok {
		t.Error("expected extraction to fail for a cookie decoding to fewer than 48 bytes")
	}
}

func TestExtractSIDInvalidBase64(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/", nil)
	r.AddCookie(&http.Cookie{Name: "s", Value: "not-valid-base64!!"})
	if _, ok := extractSID(r); ok {
		t.Error("expected extraction to fail for invalid base64")
	}
}

func TestCsrfMatches(t *testing.T) {
	var csrf [24]byte
	for i := range csrf {
		csrf[i] = byte(i + 1)
	}
	sess := nvrdb.Session{CSRF: csrf}
	presented := base64.RawStdEncoding.EncodeToString(csrf[:])
	if !csrfMatches(sess, presented) {
		t.Error("expected matching CSRF token to compare equal")
	}
}

func TestCsrfMatchesRejectsWrongToken(t *testing.T) {
	sess := nvrdb.Session{CSRF: [24]byte{1, 2, 3}}
	wrong := make([]byte, 24)
	presented := base64.RawStdEncoding.EncodeToString(wrong)
	if csrfMatches(sess, presented) {
		t.Error("expected mismatched CSRF token to compare unequal")
	}
}

func TestCsrfMatchesRejectsInvalidBase64(t *testing.T) {
	sess := nvrdb.Session{CSRF: [24]byte{1, 2, 3}}
	if csrfMatches(sess, "!!!not base64!!!") {
		t.Error("expected invalid base64 to compare unequal")
	}
}
