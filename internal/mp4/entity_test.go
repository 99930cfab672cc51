package mp4

import (
	"net/http"
	"testing"
)

func TestEntityWriteRangeAcrossParts(t *testing.T) {
	e := newEntity([]part{{data: []byte("hello ")}, {data: []byte("world")}})
	if e.Len() != 11 {
		t.Fatalf("Len = %d, want 11", e.Len())
	}

	buf := &writerStub{}
	if err := e.WriteRange(buf, ByteRange{3, 9}); err != nil {
		t.Fatalf("WriteRange: %v", err)
	}
	if got := string(buf.data); got != "lo wor" {
		t.Errorf("WriteRange(3,9) = %q, want %q", got, "lo wor")
	}
}

func TestEntityWriteRangeRejectsOutOfBounds(t *testing.T) {
	e := newEntity([]part{{data: []byte("abc")}})
	buf := &writerStub{}
	if err := e.WriteRange(buf, ByteRange{0, 4}); err == nil {
		t.Error("expected error for range extending past entity length")
	}
	if err := e.WriteRange(buf, ByteRange{-1, 2}); err == nil {
		t.Error("expected error for negative range start")
	}
	if err := e.WriteRange(buf, ByteRange{2, 1}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestEntityFullRange(t *testing.T) {
	e := newEntity([]part{{data: []byte("abcdef")}})
	r := e.FullRange()
	if r.Start != 0 || r.End != 6 {
		t.Errorf("FullRange = %+v, want {0 6}", r)
	}
}

func TestEntityAddHeaders(t *testing.T) {
	e := newEntity([]part{{data: []byte("x")}})
	h := make(http.Header)
	e.AddHeaders(h)
	if h.Get("Content-Type") != "video/mp4" {
		t.Errorf("Content-Type = %q", h.Get("Content-Type"))
	}
	if h.Get("Accept-Ranges") != "bytes" {
		t.Errorf("Accept-Ranges = %q", h.Get("Accept-Ranges"))
	}
}
