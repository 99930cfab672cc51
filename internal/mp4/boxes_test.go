package mp4

import (
	"encoding/binary"
	"testing"
)

func boxSizeAndType(t *testing.T, data []byte) (uint32, string) {
	t.Helper()
	if len(data) < 8 {
		t.Fatalf("box too short: %d bytes", len(data))
	}
	return binary.BigEndian.Uint32(data[0:4]), string(data[4:8])
}

func TestFtypBoxWellFormed(t *testing.T) {
	data := ftypBox()
	size, typ := boxSizeAndType(t, data)
	if typ != "ftyp" {
		t.Errorf("type = %q, want ftyp", typ)
	}
	if int(size) != len(data) {
		t.Errorf("declared size %d does not match actual length %d", size, len(data))
	}
}

func TestMoovBoxNestsTrak(t *testing.T) {
	entry := SampleEntry{ID: 1, Width: 640, Height: 480, Data: []byte{0xde, 0xad, 0xbe, 0xef}}
	data := moovBox(180000, entry)
	size, typ := boxSizeAndType(t, data)
	if typ != "moov" {
		t.Fatalf("type = %q, want moov", typ)
	}
	if int(size) != len(data) {
		t.Fatalf("declared size %d does not match actual length %d", size, len(data))
	}
	if !containsBoxType(data[8:], "mvhd") {
		t.Error("moov missing mvhd child")
	}
	if !containsBoxType(data[8:], "trak") {
		t.Error("moov missing trak child")
	}
}

func TestMoofBoxSequenceNumber(t *testing.T) {
	samples := []Sample{{DurationTicks: 3000, Bytes: 1024, IsKey: true}}
	data := moofBox(5, 1, 90000, samples)
	size, typ := boxSizeAndType(t, data)
	if typ != "moof" {
		t.Fatalf("type = %q, want moof", typ)
	}
	if int(size) != len(data) {
		t.Fatalf("declared size %d does not match actual length %d", size, len(data))
	}
	if !containsBoxType(data[8:], "mfhd") {
		t.Error("moof missing mfhd child")
	}
	if !containsBoxType(data[8:], "traf") {
		t.Error("moof missing traf child")
	}
}

func TestMdatBoxWrapsPayload(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	data := mdatBox(payload)
	size, typ := boxSizeAndType(t, data)
	if typ != "mdat" {
		t.Fatalf("type = %q, want mdat", typ)
	}
	if int(size) != len(data) {
		t.Fatalf("declared size %d does not match actual length %d", size, len(data))
	}
	if string(data[8:]) != string(payload) {
		t.Errorf("mdat body = %v, want %v", data[8:], payload)
	}
}

// containsBoxType walks a sequence of sibling boxes looking for typ at
// the top level, the same traversal a reader would use to locate moov's
// children without fully parsing the tree.
func containsBoxType(data []byte, typ string) bool {
	for len(data) >= 8 {
		size := binary.BigEndian.Uint32(data[0:4])
		if size < 8 || int(size) > len(data) {
			return false
		}
		if string(data[4:8]) == typ {
			return true
		}
		data = data[size:]
	}
	return false
}
