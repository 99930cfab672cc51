package nvrdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InsertCamera is a test/fixture helper alongside InsertRecording:
// production camera/stream provisioning belongs to an out-of-scope
// administrative tool, but tests need a way to seed rows this package's
// handlers can then read back through the in-memory cache.
func (l *Locked) InsertCamera(ctx context.Context, id uuid.UUID, shortName, description string) error {
	raw, err := id.MarshalBinary()
	if err != nil {
		return fmt.Errorf("nvrdb: marshal camera uuid: %w", err)
	}
	if _, err := l.sqlDB().ExecContext(ctx,
		`INSERT INTO camera (uuid, short_name, description) VALUES (?, ?, ?)`,
		raw, shortName, description); err != nil {
		return fmt.Errorf("%w: insert camera: %v", ErrDatabase, err)
	}
	return nil
}

// InsertStream is the stream-row counterpart of InsertCamera.
func (l *Locked) InsertStream(ctx context.Context, id int32, cameraID uuid.UUID, typ StreamType, recordDurationSec int) error {
	raw, err := cameraID.MarshalBinary()
	if err != nil {
		return fmt.Errorf("nvrdb: marshal camera uuid: %w", err)
	}
	if _, err := l.sqlDB().ExecContext(ctx, `
		INSERT INTO stream (id, camera_uuid, type, record_duration_sec) VALUES (?, ?, ?, ?)`,
		id, raw, int(typ), recordDurationSec); err != nil {
		return fmt.Errorf("%w: insert stream: %v", ErrDatabase, err)
	}
	return nil
}

// InsertVideoSampleEntry is the video_sample_entry-row counterpart of
// InsertCamera.
func (l *Locked) InsertVideoSampleEntry(ctx context.Context, e VideoSampleEntry) error {
	if _, err := l.sqlDB().ExecContext(ctx, `
		INSERT INTO video_sample_entry (id, width, height, sha1, data) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Width, e.Height, e.SHA1[:], e.Data); err != nil {
		return fmt.Errorf("%w: insert video sample entry: %v", ErrDatabase, err)
	}
	return nil
}

// Reload refreshes the in-memory camera/stream/video-sample-entry
// caches from SQLite, exported so fixture-seeding tests can make rows
// inserted through Insert* visible without reopening the database.
func (db *Database) Reload(ctx context.Context) error { return db.reload(ctx) }
