package nvrdb

import (
	"context"
	"testing"
)

func createTestUser(t *testing.T, db *Database, username, password string, perms Permissions) int32 {
	t.Helper()
	l := db.Lock()
	defer l.Unlock()
	id, err := l.CreateUser(context.Background(), username, password, perms)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return id
}

func TestLoginByPasswordSuccess(t *testing.T) {
	db := openTestDB(t)
	perms := Permissions{ViewVideo: true}
	createTestUser(t, db, "alice", "correct horse battery staple", perms)

	l := db.Lock()
	defer l.Unlock()
	raw, sess, err := l.LoginByPassword(context.Background(), AuthRequest{Addr: "1.2.3.4"}, "alice", "correct horse battery staple", FlagHTTPOnly, "example.com")
	if err != nil {
		t.Fatalf("LoginByPassword: %v", err)
	}
	if raw == (RawSessionID{}) {
		t.Error("expected a non-zero raw session id")
	}
	if sess.Permissions != perms {
		t.Errorf("Permissions = %+v, want %+v", sess.Permissions, perms)
	}
	if sess.Domain != "example.com" {
		t.Errorf("Domain = %q, want example.com", sess.Domain)
	}
}

func TestLoginByPasswordBadPassword(t *testing.T) {
	db := openTestDB(t)
	createTestUser(t, db, "alice", "correct horse battery staple", Permissions{})

	l := db.Lock()
	defer l.Unlock()
	_, _, err := l.LoginByPassword(context.Background(), AuthRequest{}, "alice", "wrong password", 0, "")
	if err != ErrBadCredentials {
		t.Errorf("err = %v, want ErrBadCredentials", err)
	}
}

func TestLoginByPasswordUnknownUser(t *testing.T) {
	db := openTestDB(t)
	l := db.Lock()
	defer l.Unlock()
	_, _, err := l.LoginByPassword(context.Background(), AuthRequest{}, "nobody", "whatever", 0, "")
	if err != ErrBadCredentials {
		t.Errorf("err = %v, want ErrBadCredentials", err)
	}
}

func TestLoginByPasswordDisabledUser(t *testing.T) {
	db := openTestDB(t)
	createTestUser(t, db, "alice", "hunter2hunter2", Permissions{})
	if _, err := db.sql.ExecContext(context.Background(), `UPDATE user SET disabled = 1 WHERE username = ?`, "alice"); err != nil {
		t.Fatalf("disable user: %v", err)
	}

	l := db.Lock()
	defer l.Unlock()
	_, _, err := l.LoginByPassword(context.Background(), AuthRequest{}, "alice", "hunter2hunter2", 0, "")
	if err != ErrUserDisabled {
		t.Errorf("err = %v, want ErrUserDisabled", err)
	}
}

func TestAuthenticateSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)
	createTestUser(t, db, "alice", "hunter2hunter2", Permissions{ViewVideo: true})

	l := db.Lock()
	raw, _, err := l.LoginByPassword(context.Background(), AuthRequest{}, "alice", "hunter2hunter2", 0, "")
	l.Unlock()
	if err != nil {
		t.Fatalf("LoginByPassword: %v", err)
	}

	l = db.Lock()
	defer l.Unlock()
	sess, err := l.AuthenticateSession(context.Background(), raw)
	if err != nil {
		t.Fatalf("AuthenticateSession: %v", err)
	}
	if !sess.Permissions.ViewVideo {
		t.Error("expected ViewVideo permission to round-trip")
	}
}

func TestAuthenticateSessionUnknown(t *testing.T) {
	db := openTestDB(t)
	l := db.Lock()
	defer l.Unlock()
	var raw RawSessionID
	if _, err := l.AuthenticateSession(context.Background(), raw); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestRevokeSessionThenAuthenticateFails(t *testing.T) {
	db := openTestDB(t)
	createTestUser(t, db, "alice", "hunter2hunter2", Permissions{})

	l := db.Lock()
	raw, _, err := l.LoginByPassword(context.Background(), AuthRequest{}, "alice", "hunter2hunter2", 0, "")
	l.Unlock()
	if err != nil {
		t.Fatalf("LoginByPassword: %v", err)
	}

	l = db.Lock()
	if err := l.RevokeSession(context.Background(), raw, RevocationLoggedOut); err != nil {
		l.Unlock()
		t.Fatalf("RevokeSession: %v", err)
	}
	l.Unlock()

	l = db.Lock()
	defer l.Unlock()
	if _, err := l.AuthenticateSession(context.Background(), raw); err != ErrSessionRevoked {
		t.Errorf("err = %v, want ErrSessionRevoked", err)
	}
}

func TestRevokeUnknownSession(t *testing.T) {
	db := openTestDB(t)
	l := db.Lock()
	defer l.Unlock()
	var raw RawSessionID
	if err := l.RevokeSession(context.Background(), raw, RevocationLoggedOut); err != ErrNoSession {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}

func TestCSRFMatches(t *testing.T) {
	sess := Session{CSRF: [24]byte{1, 2, 3}}
	if !CSRFMatches(sess, [24]byte{1, 2, 3}) {
		t.Error("expected matching CSRF tokens to compare equal")
	}
	if CSRFMatches(sess, [24]byte{1, 2, 4}) {
		t.Error("expected differing CSRF tokens to compare unequal")
	}
}
