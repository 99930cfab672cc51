package mp4

import (
	"fmt"
	"io"
	"net/http"
)

// part is one contiguous chunk of an assembled entity's byte stream.
type part struct {
	data []byte
}

// Entity is an assembled, immutable byte sequence a view or init-segment
// handler can serve with full HTTP range support, grounded on the
// original's Entity trait (len/write_to/add_headers).
type Entity struct {
	parts []part
	total int64
}

func newEntity(parts []part) *Entity {
	var total int64
	for _, p := range parts {
		total += int64(len(p.data))
	}
	return &Entity{parts: parts, total: total}
}

// Len is the entity's total byte length.
func (e *Entity) Len() int64 { return e.total }

// ContentType is always video/mp4 for the segments this package builds.
func (e *Entity) ContentType() string { return "video/mp4" }

// AddHeaders sets the response headers static_file-style handlers need:
// Content-Type and Accept-Ranges. Content-Length/Content-Range are set
// by the caller once it knows whether the whole entity or a byte range
// is being served.
func (e *Entity) AddHeaders(h http.Header) {
	h.Set("Content-Type", e.ContentType())
	h.Set("Accept-Ranges", "bytes")
}

// WriteRange writes the bytes in [r.Start, r.End) to w. Callers resolve
// an HTTP Range header into a ByteRange before calling this (or pass
// the entity's full range for an unconditional GET).
func (e *Entity) WriteRange(w io.Writer, r ByteRange) error {
	if r.Start < 0 || r.End > e.total || r.Start > r.End {
		return fmt.Errorf("mp4: byte range %d-%d out of bounds for entity of length %d", r.Start, r.End, e.total)
	}
	var pos int64
	for _, p := range e.parts {
		partStart, partEnd := pos, pos+int64(len(p.data))
		pos = partEnd
		lo := max64(r.Start, partStart)
		hi := min64(r.End, partEnd)
		if lo >= hi {
			continue
		}
		if _, err := w.Write(p.data[lo-partStart : hi-partStart]); err != nil {
			return err
		}
	}
	return nil
}

// FullRange is the ByteRange covering the whole entity.
func (e *Entity) FullRange() ByteRange { return ByteRange{0, e.total} }

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
