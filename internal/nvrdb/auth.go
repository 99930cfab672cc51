package nvrdb

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// LoginByPassword verifies username/password against the user table and,
// on success, mints a new session. Grounded on login() in the original
// web layer: bcrypt compare, then insert a session row keyed by the
// SHA-256 of a freshly generated random id, the raw id is the only
// thing ever sent to the client.
func (l *Locked) LoginByPassword(ctx context.Context, req AuthRequest, username, password string, flags SessionFlags, domain string) (RawSessionID, Session, error) {
	row := l.sqlDB().QueryRowContext(ctx, `
		SELECT id, password_hash, disabled, view_video, read_camera_configs, update_signals
		FROM user WHERE username = ?`, username)
	var u User
	var disabled int
	if err := row.Scan(&u.ID, &u.PasswordHash, &disabled, &u.Permissions.ViewVideo,
		&u.Permissions.ReadCameraConfigs, &u.Permissions.UpdateSignals); err != nil {
		if err == sql.ErrNoRows {
			// Constant-shape failure: don't let a timing difference reveal
			// whether the username exists.
			_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva"), []byte(password))
			return RawSessionID{}, Session{}, ErrBadCredentials
		}
		return RawSessionID{}, Session{}, fmt.Errorf("%w: lookup user: %v", ErrDatabase, err)
	}
	u.Disabled = disabled != 0
	if u.Disabled {
		return RawSessionID{}, Session{}, ErrUserDisabled
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return RawSessionID{}, Session{}, ErrBadCredentials
	}

	var raw RawSessionID
	if _, err := rand.Read(raw[:]); err != nil {
		return RawSessionID{}, Session{}, fmt.Errorf("nvrdb: generate session id: %w", err)
	}
	hash := SessionHash(sha256.Sum256(raw[:]))

	var csrf [24]byte
	if _, err := rand.Read(csrf[:]); err != nil {
		return RawSessionID{}, Session{}, fmt.Errorf("nvrdb: generate csrf token: %w", err)
	}

	sess := Session{
		Hash:        hash,
		UserID:      u.ID,
		Permissions: u.Permissions,
		CSRF:        csrf,
		Flags:       flags,
		Domain:      domain,
		CreatedAt:   l.Clocks().Realtime(),
		CreatorAddr: req.Addr,
		CreatorUA:   req.UserAgent,
	}

	_, err := l.sqlDB().ExecContext(ctx, `
		INSERT INTO session (hash, user_id, view_video, read_camera_configs, update_signals,
		                      csrf, flags, domain, revoked, reason, created_at, creator_addr, creator_user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`,
		hash[:], sess.UserID, sess.Permissions.ViewVideo, sess.Permissions.ReadCameraConfigs,
		sess.Permissions.UpdateSignals, csrf[:], int32(flags), domain,
		sess.CreatedAt.Unix(), req.Addr, req.UserAgent)
	if err != nil {
		return RawSessionID{}, Session{}, fmt.Errorf("%w: insert session: %v", ErrDatabase, err)
	}
	return raw, sess, nil
}

// AuthenticateSession looks up a session by its raw client-presented id
// and returns distinct errors for "doesn't exist", "revoked" and "user
// disabled" rather than conflating all three into a bare bool, resolving
// the Open Issue the original's authenticate() left unaddressed.
func (l *Locked) AuthenticateSession(ctx context.Context, raw RawSessionID) (Session, error) {
	hash := SessionHash(sha256.Sum256(raw[:]))
	row := l.sqlDB().QueryRowContext(ctx, `
		SELECT s.user_id, s.view_video, s.read_camera_configs, s.update_signals, s.csrf,
		       s.flags, s.domain, s.revoked, s.reason, s.created_at, s.creator_addr, s.creator_user_agent,
		       u.disabled
		FROM session s JOIN user u ON u.id = s.user_id
		WHERE s.hash = ?`, hash[:])

	var sess Session
	var revoked, disabled int
	var flags int32
	var createdAtSec int64
	var csrf, domain []byte
	_ = domain
	var domainStr string
	if err := row.Scan(&sess.UserID, &sess.Permissions.ViewVideo, &sess.Permissions.ReadCameraConfigs,
		&sess.Permissions.UpdateSignals, &csrf, &flags, &domainStr, &revoked, &sess.Reason,
		&createdAtSec, &sess.CreatorAddr, &sess.CreatorUA, &disabled); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("%w: lookup session: %v", ErrDatabase, err)
	}
	sess.Hash = hash
	sess.Flags = SessionFlags(flags)
	sess.Domain = domainStr
	copy(sess.CSRF[:], csrf)

	if revoked != 0 {
		return Session{}, ErrSessionRevoked
	}
	if disabled != 0 {
		return Session{}, ErrUserDisabled
	}
	return sess, nil
}

// AuthenticateSessionWithUser is AuthenticateSession plus the owning
// user's username, which the caller needs to populate the session JSON
// DTO without a second lookup.
func (l *Locked) AuthenticateSessionWithUser(ctx context.Context, req AuthRequest, raw RawSessionID) (Session, User, error) {
	sess, err := l.AuthenticateSession(ctx, raw)
	if err != nil {
		return Session{}, User{}, err
	}
	row := l.sqlDB().QueryRowContext(ctx, `SELECT username FROM user WHERE id = ?`, sess.UserID)
	var u User
	u.ID = sess.UserID
	if err := row.Scan(&u.Username); err != nil {
		return Session{}, User{}, fmt.Errorf("%w: lookup username: %v", ErrDatabase, err)
	}
	return sess, u, nil
}

// RevokeSession marks a session revoked with the given reason. Used by
// logout and by administrative session management.
func (l *Locked) RevokeSession(ctx context.Context, raw RawSessionID, reason RevocationReason) error {
	hash := SessionHash(sha256.Sum256(raw[:]))
	res, err := l.sqlDB().ExecContext(ctx, `
		UPDATE session SET revoked = 1, reason = ? WHERE hash = ?`, int(reason), hash[:])
	if err != nil {
		return fmt.Errorf("%w: revoke session: %v", ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: revoke session rows affected: %v", ErrDatabase, err)
	}
	if n == 0 {
		return ErrNoSession
	}
	return nil
}

// CSRFMatches performs a constant-time comparison of the session's CSRF
// token against the one a mutating request presented, grounded on
// csrf_matches() in the original web layer.
func CSRFMatches(session Session, presented [24]byte) bool {
	return subtle.ConstantTimeCompare(session.CSRF[:], presented[:]) == 1
}

// CreateUser is a fixture/admin helper for seeding accounts; production
// deployments manage users out of band (spec.md Non-goals: no user
// management API).
func (l *Locked) CreateUser(ctx context.Context, username, password string, perms Permissions) (int32, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("nvrdb: hash password: %w", err)
	}
	res, err := l.sqlDB().ExecContext(ctx, `
		INSERT INTO user (username, password_hash, disabled, view_video, read_camera_configs, update_signals)
		VALUES (?, ?, 0, ?, ?, ?)`,
		username, hash, perms.ViewVideo, perms.ReadCameraConfigs, perms.UpdateSignals)
	if err != nil {
		return 0, fmt.Errorf("%w: insert user: %v", ErrDatabase, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: user id: %v", ErrDatabase, err)
	}
	return int32(id), nil
}
