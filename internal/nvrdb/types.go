// Package nvrdb implements the recording database contract: cameras,
// streams, recordings, video sample entries, sessions and signal history,
// backed by SQLite and cached in memory behind a single coarse lock.
package nvrdb

import (
	"time"

	"github.com/google/uuid"
)

// StreamType identifies which of a camera's two streams a recording
// belongs to.
type StreamType int

const (
	Main StreamType = iota
	Sub
)

// Index returns the array slot used for Camera.Streams.
func (t StreamType) Index() int { return int(t) }

func (t StreamType) String() string {
	switch t {
	case Main:
		return "main"
	case Sub:
		return "sub"
	default:
		return "unknown"
	}
}

// ParseStreamType parses the path segment naming a stream type. Returns
// false if it isn't one of the known enumerants.
func ParseStreamType(s string) (StreamType, bool) {
	switch s {
	case "main":
		return Main, true
	case "sub":
		return Sub, true
	default:
		return 0, false
	}
}

// Camera is identified by a UUID and holds up to two streams.
type Camera struct {
	ID          uuid.UUID
	ShortName   string
	Description string
	Streams     [2]*Stream // indexed by StreamType
}

// Stream is identified by a stable integer id derived from (camera, type).
type Stream struct {
	ID              int32
	CameraID        uuid.UUID
	Type            StreamType
	SampleFileDirID int64
	HasSampleFileDir bool
	RecordDurationSec int
}

// VideoSampleEntry holds codec parameters plus a content hash.
type VideoSampleEntry struct {
	ID     int64
	Width  int
	Height int
	SHA1   [20]byte
	// Raw AVCDecoderConfigurationRecord-equivalent data, opaque beyond
	// being embedded inside the init segment's stsd box.
	Data []byte
}

// Recording describes one recorded chunk within a stream. Recordings
// within a stream form a dense [min_id, max_id] sequence without gaps.
type Recording struct {
	StreamID           int32
	ID                 int32 // recording_id, unique+monotonic within stream
	OpenID             int32
	StartTime90k       int64
	Duration90k        int32
	SampleFileBytes    int32
	VideoSampleEntryID int64
	VideoSamples       int32
	FirstUncommitted   int32
	HasFirstUncommitted bool
	Growing            bool
}

// EndTime90k is StartTime90k + Duration90k.
func (r Recording) EndTime90k() int64 { return r.StartTime90k + int64(r.Duration90k) }

// AggregatedRecording is one row of a "list aggregated recordings" run:
// a maximal contiguous span of recordings collapsed for display.
type AggregatedRecording struct {
	IDs                IDRange // [start, end)
	Time               TimeRange
	SampleFileBytes    int64
	OpenID             int32
	FirstUncommitted   int32
	HasFirstUncommitted bool
	VideoSamples       int64
	VideoSampleEntryID int64
	Growing            bool
}

// IDRange is a half-open range of recording ids [Start, End).
type IDRange struct {
	Start int32
	End   int32
}

func (r IDRange) Len() int32 { return r.End - r.Start }

// TimeRange is a half-open range of 90kHz timestamps [Start, End).
type TimeRange struct {
	Start int64
	End   int64
}

const (
	MinTime90k int64 = -1 << 62
	MaxTime90k int64 = 1 << 62
)

// FullTimeRange covers every representable timestamp; used as the
// default when a request supplies neither startTime90k nor endTime90k.
func FullTimeRange() TimeRange { return TimeRange{MinTime90k, MaxTime90k} }

// Duration90k is a span of time in 90kHz ticks.
type Duration90k int64

const MaxDuration90k Duration90k = 1<<63 - 1

// DesiredRecordingDuration is the nominal rotation period recordings are
// cut at; used only to heuristically size a builder's segment-count
// reservation (spec.md §4.5 step 1).
const DesiredRecordingDuration int64 = 60 * 90000

// Permissions is the fixed, flat permission set this service understands.
type Permissions struct {
	ViewVideo         bool `json:"view_video,omitempty"`
	ReadCameraConfigs bool `json:"read_camera_configs,omitempty"`
	UpdateSignals     bool `json:"update_signals,omitempty"`
}

// SessionFlags mirror the cookie attributes a session was created with.
type SessionFlags int32

const (
	FlagHTTPOnly SessionFlags = 1 << iota
	FlagSecure
	FlagSameSite
	FlagSameSiteStrict
)

// RevocationReason records why a session was revoked.
type RevocationReason int

const (
	RevocationNone RevocationReason = iota
	RevocationLoggedOut
	RevocationAdministrative
)

// RawSessionID is the 48-byte value handed to the client; never stored.
type RawSessionID [48]byte

// SessionHash is the stored, looked-up-by key: sha256(RawSessionID).
type SessionHash [32]byte

// User is an account that can log in.
type User struct {
	ID           int32
	Username     string
	PasswordHash []byte // bcrypt
	Disabled     bool
	Permissions  Permissions
}

// Session is a logged-in session's server-side state.
type Session struct {
	Hash        SessionHash
	UserID      int32
	Permissions Permissions
	CSRF        [24]byte
	Flags       SessionFlags
	Domain      string
	Revoked     bool
	Reason      RevocationReason
	CreatedAt   time.Time
	CreatorAddr string
	CreatorUA   string
}

// AuthRequest is the immutable context passed to every auth-touching
// database call: explicit context passing instead of thread-locals.
type AuthRequest struct {
	WhenSec   int64
	Addr      string // empty if unknown/untrusted
	UserAgent string
}

// LiveFragment names one freshly flushed sub-recording fragment.
type LiveFragment struct {
	Recording int32
	Off90k    Range90k
}

// Range90k is a local (recording-relative) span in 90kHz units.
type Range90k struct {
	Start int32
	End   int32
}

// OpenID names the database's current write epoch; present only while
// the database is writable (not read-only / historical).
type OpenID int32
