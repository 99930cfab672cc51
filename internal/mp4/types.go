// Package mp4 assembles fragmented MP4 (ISO/BMFF) responses: a shared
// initialization segment (ftyp+moov) per video sample entry, and media
// segments (moof+mdat) per requested recording range, byte-range
// addressable the way a plain static file is.
package mp4

import "fmt"

// Range90k is a local (recording-relative) span of 90kHz ticks.
type Range90k struct {
	Start int64
	End   int64
}

func (r Range90k) Len() int64 { return r.End - r.Start }

// SampleEntry carries the codec parameters embedded in the stsd box of
// an initialization segment.
type SampleEntry struct {
	ID     int64
	Width  int
	Height int
	// AVCDecoderConfigurationRecord-equivalent payload, opaque to this
	// package beyond being copied verbatim into avcC.
	Data []byte
}

// Sample is one decode-order media sample within a segment.
type Sample struct {
	DurationTicks int32
	Bytes         int32
	IsKey         bool
}

// Segment is one source recording contributing (possibly a sub-range
// of) its samples to a response: either the whole recording or a
// trimmed [Range90k) slice of it, per spec.md's segment-spec grammar.
type Segment struct {
	RecordingID int32
	OpenID      int32
	Entry       SampleEntry
	StartTime90k int64
	Range        Range90k // sample-relative trim, half-open
	Samples      []Sample
	// FirstSampleOffset is where in the backing sample file the first
	// requested sample begins; stdlib-only here since no third-party
	// component in this repo's dependency set reads sample bytes — real
	// deployments source this from the sample file directory.
	FirstSampleOffset int64
}

// ByteRange is a half-open byte range within an assembled entity,
// matching the semantics of an HTTP Range header's byte-range-spec.
type ByteRange struct {
	Start int64
	End   int64 // exclusive
}

func (b ByteRange) Len() int64 { return b.End - b.Start }

func (b ByteRange) String() string {
	return fmt.Sprintf("bytes %d-%d/*", b.Start, b.End-1)
}
