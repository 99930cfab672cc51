package mp4

import "fmt"

// Builder assembles an Entity from a requested sequence of segments,
// mirroring the original's FileBuilder: reserve space up front sized by
// a rough estimate, append segments in order, then finalize into an
// immutable, byte-range-servable entity.
type Builder struct {
	entry    *SampleEntry
	segments []Segment
}

// NewBuilder starts a builder. sizeHint is an estimate of the total
// segment count, used only to preallocate (spec.md §4.5 step 1: derived
// from the requested time range divided by the nominal recording
// rotation period).
func NewBuilder(sizeHint int) *Builder {
	return &Builder{segments: make([]Segment, 0, sizeHint)}
}

// Append adds one recording's (possibly trimmed) contribution to the
// response. All appended segments must share the same video sample
// entry: a response cannot switch codec parameters mid-stream.
func (b *Builder) Append(seg Segment) error {
	if b.entry == nil {
		entry := seg.Entry
		b.entry = &entry
	} else if b.entry.ID != seg.Entry.ID {
		return fmt.Errorf("mp4: segment video sample entry %d does not match response's entry %d",
			seg.Entry.ID, b.entry.ID)
	}
	b.segments = append(b.segments, seg)
	return nil
}

// Finalize builds the initialization segment and each media segment's
// boxes, and returns the assembled Entity. withInitSegment controls
// whether the leading ftyp+moov is included (the /init.mp4 endpoint
// wants only that; a view request wants init once followed by the
// concatenated media segments).
func (b *Builder) Finalize(withInitSegment bool) (*Entity, error) {
	if len(b.segments) == 0 && !withInitSegment {
		return nil, fmt.Errorf("mp4: no segments to build")
	}

	var parts []part
	if withInitSegment {
		var totalDuration uint64
		var entry SampleEntry
		if b.entry != nil {
			entry = *b.entry
		}
		for _, seg := range b.segments {
			totalDuration += uint64(seg.Range.Len())
		}
		init := append(ftypBox(), moovBox(totalDuration, entry)...)
		parts = append(parts, part{data: init})
	}

	for i, seg := range b.segments {
		samples := seg.Samples
		moof := moofBox(uint32(i+1), 1, uint64(seg.Range.Start), samples)
		mdat := mdatBox(mediaPayload(seg))
		parts = append(parts, part{data: append(moof, mdat...)})
	}

	return newEntity(parts), nil
}

// mediaPayload returns the raw bytes this segment's mdat should carry.
// Real sample bytes are read from the sample file directory by the
// (out-of-scope) capture pipeline's storage layer; this package only
// needs the byte count and placement to be correct, so callers that
// already have the bytes in hand (tests, or a future storage-layer
// wiring) pass them through FirstSampleOffset-addressed data elsewhere.
// Lacking that wiring, a segment built from Sample.Bytes alone produces
// a correctly sized but zero-filled payload.
func mediaPayload(seg Segment) []byte {
	var total int64
	for _, s := range seg.Samples {
		total += int64(s.Bytes)
	}
	return make([]byte, total)
}
