package mp4

import "testing"

func sampleEntry(id int64) SampleEntry {
	return SampleEntry{ID: id, Width: 1920, Height: 1080, Data: []byte{0x01, 0x42, 0xC0, 0x1E}}
}

func TestBuilderAppendRejectsMixedSampleEntries(t *testing.T) {
	b := NewBuilder(2)
	if err := b.Append(Segment{Entry: sampleEntry(1), Samples: []Sample{{DurationTicks: 3000, Bytes: 100, IsKey: true}}}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	err := b.Append(Segment{Entry: sampleEntry(2), Samples: []Sample{{DurationTicks: 3000, Bytes: 100}}})
	if err == nil {
		t.Fatal("expected error appending a segment with a different video sample entry")
	}
}

func TestBuilderFinalizeWithoutSegmentsRequiresInit(t *testing.T) {
	b := NewBuilder(0)
	if _, err := b.Finalize(false); err == nil {
		t.Fatal("expected error finalizing an empty builder with no init segment")
	}
	if _, err := b.Finalize(true); err != nil {
		t.Fatalf("init-only finalize: %v", err)
	}
}

func TestBuilderFinalizeProducesInitAndMediaSegments(t *testing.T) {
	b := NewBuilder(2)
	entry := sampleEntry(7)
	seg1 := Segment{
		RecordingID: 1, Entry: entry, Range: Range90k{Start: 0, End: 90000},
		Samples: []Sample{{DurationTicks: 90000, Bytes: 4096, IsKey: true}},
	}
	seg2 := Segment{
		RecordingID: 2, Entry: entry, Range: Range90k{Start: 90000, End: 180000},
		Samples: []Sample{{DurationTicks: 90000, Bytes: 2048, IsKey: true}},
	}
	if err := b.Append(seg1); err != nil {
		t.Fatalf("append seg1: %v", err)
	}
	if err := b.Append(seg2); err != nil {
		t.Fatalf("append seg2: %v", err)
	}

	entity, err := b.Finalize(true)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if entity.Len() == 0 {
		t.Fatal("expected a non-empty entity")
	}

	// ftyp's box type must appear at the very start of the stream.
	var head [8]byte
	buf := &writerStub{}
	if err := entity.WriteRange(buf, ByteRange{0, 8}); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}
	copy(head[:], buf.data)
	if string(head[4:8]) != "ftyp" {
		t.Errorf("expected leading ftyp box, got %q", head[4:8])
	}
}

func TestBuilderFinalizeWithoutInitSegment(t *testing.T) {
	b := NewBuilder(1)
	entry := sampleEntry(1)
	if err := b.Append(Segment{Entry: entry, Samples: []Sample{{DurationTicks: 9000, Bytes: 512, IsKey: true}}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	entity, err := b.Finalize(false)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	buf := &writerStub{}
	if err := entity.WriteRange(buf, ByteRange{0, 8}); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}
	if string(buf.data[4:8]) != "moof" {
		t.Errorf("expected leading moof box when init segment is omitted, got %q", buf.data[4:8])
	}
}

type writerStub struct{ data []byte }

func (w *writerStub) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}
