// Package nvrjson defines the wire DTOs this service's JSON endpoints
// serialize, reconstructed from the call sites of the original web
// layer's json module (top_level, camera, stream_recordings, signals,
// login/logout).
package nvrjson

// TopLevel is the body of GET /api/.
type TopLevel struct {
	TimeZoneName string     `json:"timeZoneName"`
	Cameras      []Camera   `json:"cameras"`
	Signals      []Signal   `json:"signals,omitempty"`
	SignalTypes  []SignalType `json:"signalTypes,omitempty"`
	Session      *Session   `json:"session,omitempty"`
}

// Camera is one camera entry with its configured streams. The handlers
// never fill a stream's Days.
type Camera struct {
	UUID        string            `json:"uuid"`
	ShortName   string            `json:"shortName"`
	Description string            `json:"description,omitempty"`
	Streams     map[string]Stream `json:"streams,omitempty"`
}

// Stream summarizes one of a camera's (main/sub) streams.
type Stream struct {
	RecordDurationSec int    `json:"recordDurationSec"`
	RetainBytes        int64  `json:"retainBytes,omitempty"`
	Days               []Day  `json:"days,omitempty"`
	TotalDurationSec   float64 `json:"totalDurationSec,omitempty"`
	TotalSampleFileBytes int64 `json:"totalSampleFileBytes,omitempty"`
}

// Day summarizes recording coverage for one calendar day.
type Day struct {
	StartTime90k int64 `json:"startTime90k"`
	EndTime90k   int64 `json:"endTime90k"`
	TotalDuration90k int64 `json:"totalDuration90k"`
}

// ListRecordings is the body of GET .../recordings.
type ListRecordings struct {
	Recordings []Recording `json:"recordings"`
}

// Recording is one aggregated recording run.
type Recording struct {
	StartID            int32  `json:"startId"`
	EndID              int32  `json:"endId,omitempty"`
	StartTime90k       int64  `json:"startTime90k"`
	EndTime90k         int64  `json:"endTime90k"`
	SampleFileBytes    int64  `json:"sampleFileBytes"`
	VideoSampleEntrySha1 string `json:"videoSampleEntrySha1"`
	VideoSampleEntryWidth int `json:"videoSampleEntryWidth"`
	VideoSampleEntryHeight int `json:"videoSampleEntryHeight"`
	Growing            bool   `json:"growing,omitempty"`
	OpenID             int32  `json:"openId"`
}

// Session is the caller's current session info, included in TopLevel
// and returned from a successful login.
type Session struct {
	Username string `json:"username"`
	CSRF     string `json:"csrf"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signal is one named signal and its most-recently-known state.
type Signal struct {
	ID    int32 `json:"id"`
	State int16 `json:"state"`
}

// SignalType describes a category of signal the UI can present.
type SignalType struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

// Signals is the body of GET .../signals: parallel arrays of times,
// signal ids, and states over the requested time range.
type Signals struct {
	Times   []int64 `json:"times90k"`
	Signals []int32 `json:"signalIds"`
	States  []int16 `json:"states"`
}

// PostSignalsEndBase names what RelEndTime90k is relative to.
type PostSignalsEndBase string

const (
	PostSignalsEndBaseEpoch PostSignalsEndBase = "epoch"
	PostSignalsEndBaseNow   PostSignalsEndBase = "now"
)

// PostSignalsRequest is the body of POST .../signals. StartTime90k
// defaults to the server's current time when omitted. When EndBase is
// "epoch", RelEndTime90k is the absolute end and is required; when
// "now" (the default), the end is now + RelEndTime90k, defaulting the
// delta to 0.
type PostSignalsRequest struct {
	Signals       []int32             `json:"signalIds"`
	States        []int16             `json:"states"`
	StartTime90k  *int64              `json:"startTime90k,omitempty"`
	EndBase       PostSignalsEndBase  `json:"endBase,omitempty"`
	RelEndTime90k *int64              `json:"relEndTime90k,omitempty"`
}

// PostSignalsResponse acknowledges a signals update.
type PostSignalsResponse struct {
	Time90k int64 `json:"time90k"`
}
