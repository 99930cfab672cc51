package nvrdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Config holds connection pool sizing and pragma tuning for the
// SQLite-backed recording database.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Clocks          Clocks
}

func DefaultConfig(path string) *Config {
	return &Config{
		Path:            path,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		Clocks:          RealClocks{},
	}
}

// Database is the recording database: a durable SQLite log plus
// in-memory caches of cameras/streams/video-sample-entries, all guarded
// by a single coarse mutex per spec.md §5 ("the database exposes a
// single coarse lock; handlers acquire it for the shortest possible
// window").
type Database struct {
	sql    *sql.DB
	clocks Clocks
	logger *slog.Logger

	mu                     sync.Mutex
	camerasByUUID          map[uuid.UUID]*Camera
	streamsByID            map[int32]*Stream
	videoSampleEntriesByID map[int64]*VideoSampleEntry
	open                   *OpenID

	live *liveRegistry
}

// Open opens (creating if needed) the SQLite-backed database, runs
// migrations, and loads the in-memory caches.
func Open(ctx context.Context, cfg *Config) (*Database, error) {
	logger := slog.Default().With("component", "nvrdb")
	connStr := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON",
		cfg.Path)
	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("nvrdb: open: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("nvrdb: ping: %w", err)
	}

	if err := newMigrator(sqlDB, logger).run(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	clocks := cfg.Clocks
	if clocks == nil {
		clocks = RealClocks{}
	}

	db := &Database{
		sql:    sqlDB,
		clocks: clocks,
		logger: logger,
		live:   newLiveRegistry(),
	}
	if err := db.reload(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	// Stamp a fresh open epoch: the database is writable for the
	// lifetime of this process handle (spec.md §3: "open_id changes on
	// restart; live streaming is only available while open_id is set").
	var openID OpenID
	row := sqlDB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM open`)
	var next int32
	if err := row.Scan(&next); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("nvrdb: allocate open id: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, `INSERT INTO open (id, started_at) VALUES (?, ?)`,
		next, clocks.Realtime().Unix()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("nvrdb: record open: %w", err)
	}
	openID = OpenID(next)
	db.open = &openID

	return db, nil
}

// OpenReadOnly opens the database through Open, which still records a
// new row in the open table, and then drops the in-memory epoch so
// Locked.Open reports none: live streaming is unavailable (spec.md §4.7
// precondition) but historical recordings can still be served.
func OpenReadOnly(ctx context.Context, cfg *Config) (*Database, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db.open = nil
	return db, nil
}

func (db *Database) Close() error { return db.sql.Close() }

// reload refreshes the in-memory camera/stream/video-sample-entry caches
// from SQLite. Called at startup and after any schema-affecting write.
func (db *Database) reload(ctx context.Context) error {
	cameras := make(map[uuid.UUID]*Camera)
	camRows, err := db.sql.QueryContext(ctx, `SELECT uuid, short_name, description FROM camera`)
	if err != nil {
		return fmt.Errorf("nvrdb: load cameras: %w", err)
	}
	for camRows.Next() {
		var rawUUID []byte
		c := &Camera{}
		if err := camRows.Scan(&rawUUID, &c.ShortName, &c.Description); err != nil {
			camRows.Close()
			return err
		}
		id, err := uuid.FromBytes(rawUUID)
		if err != nil {
			camRows.Close()
			return fmt.Errorf("nvrdb: corrupt camera uuid: %w", err)
		}
		c.ID = id
		cameras[id] = c
	}
	camRows.Close()

	streams := make(map[int32]*Stream)
	strRows, err := db.sql.QueryContext(ctx,
		`SELECT id, camera_uuid, type, sample_file_dir_id, record_duration_sec FROM stream`)
	if err != nil {
		return fmt.Errorf("nvrdb: load streams: %w", err)
	}
	for strRows.Next() {
		var rawUUID []byte
		var dirID sql.NullInt64
		s := &Stream{}
		var typ int
		if err := strRows.Scan(&s.ID, &rawUUID, &typ, &dirID, &s.RecordDurationSec); err != nil {
			strRows.Close()
			return err
		}
		camID, err := uuid.FromBytes(rawUUID)
		if err != nil {
			strRows.Close()
			return fmt.Errorf("nvrdb: corrupt stream camera uuid: %w", err)
		}
		s.CameraID = camID
		s.Type = StreamType(typ)
		if dirID.Valid {
			s.SampleFileDirID = dirID.Int64
			s.HasSampleFileDir = true
		}
		streams[s.ID] = s
		if cam, ok := cameras[camID]; ok {
			cam.Streams[s.Type.Index()] = s
		}
	}
	strRows.Close()

	vses := make(map[int64]*VideoSampleEntry)
	vseRows, err := db.sql.QueryContext(ctx, `SELECT id, width, height, sha1, data FROM video_sample_entry`)
	if err != nil {
		return fmt.Errorf("nvrdb: load video sample entries: %w", err)
	}
	for vseRows.Next() {
		e := &VideoSampleEntry{}
		var sha1 []byte
		if err := vseRows.Scan(&e.ID, &e.Width, &e.Height, &sha1, &e.Data); err != nil {
			vseRows.Close()
			return err
		}
		copy(e.SHA1[:], sha1)
		vses[e.ID] = e
	}
	vseRows.Close()

	db.mu.Lock()
	db.camerasByUUID = cameras
	db.streamsByID = streams
	db.videoSampleEntriesByID = vses
	db.mu.Unlock()
	return nil
}

// Locked is the guard returned by Database.Lock; every database
// operation spec.md §6 names hangs off it, mirroring the original's
// `let db = self.db.lock(); db.get_camera(...)` shape.
type Locked struct {
	db *Database
}

// Lock acquires the exclusive in-memory lock. Callers must call Unlock.
func (db *Database) Lock() *Locked {
	db.mu.Lock()
	return &Locked{db: db}
}

func (l *Locked) Unlock() { l.db.mu.Unlock() }

func (l *Locked) GetCamera(id uuid.UUID) (Camera, bool) {
	c, ok := l.db.camerasByUUID[id]
	if !ok {
		return Camera{}, false
	}
	return *c, true
}

func (l *Locked) StreamsByID() map[int32]*Stream { return l.db.streamsByID }

func (l *Locked) VideoSampleEntriesByID() map[int64]*VideoSampleEntry {
	return l.db.videoSampleEntriesByID
}

// Open returns the current write epoch, or false if the database is
// read-only (no current epoch).
func (l *Locked) Open() (OpenID, bool) {
	if l.db.open == nil {
		return 0, false
	}
	return *l.db.open, true
}

func (l *Locked) Clocks() Clocks { return l.db.clocks }

// Clocks is available without holding the lock: wall-clock access needs
// no synchronization of its own.
func (db *Database) Clocks() Clocks { return db.clocks }

// sqlDB exposes the underlying *sql.DB for package-internal query
// helpers (recordings.go, signals.go, auth.go) that run while the lock
// is held — SQLite access here is local and CPU-bound, not a network
// round trip, so it does not violate the "database access is not a
// suspension point" invariant of spec.md §5.
func (l *Locked) sqlDB() *sql.DB { return l.db.sql }
