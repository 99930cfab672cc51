package api

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

func TestDecodePathStatic(t *testing.T) {
	for _, p := range []string{"/", "/index.html", "/js/app.js"} {
		if got := decodePath(p); got.kind != pathStatic {
			t.Errorf("decodePath(%q).kind = %v, want pathStatic", p, got.kind)
		}
	}
}

func TestDecodePathLiterals(t *testing.T) {
	cases := map[string]pathKind{
		"/api/":        pathTopLevel,
		"/api/login":   pathLogin,
		"/api/logout":  pathLogout,
		"/api/request": pathRequest,
		"/api/signals": pathSignals,
	}
	for path, want := range cases {
		if got := decodePath(path); got.kind != want {
			t.Errorf("decodePath(%q).kind = %v, want %v", path, got.kind, want)
		}
	}
}

func TestDecodePathCamera(t *testing.T) {
	id := uuid.New()
	path := "/api/cameras/" + id.String() + "/"
	got := decodePath(path)
	if got.kind != pathCamera {
		t.Fatalf("kind = %v, want pathCamera", got.kind)
	}
	if got.cameraUUID != id {
		t.Errorf("cameraUUID = %v, want %v", got.cameraUUID, id)
	}
}

func TestDecodePathCameraInvalidUUID(t *testing.T) {
	got := decodePath("/api/cameras/not-a-uuid/")
	if got.kind != pathNotFound {
		t.Errorf("kind = %v, want pathNotFound", got.kind)
	}
}

func TestDecodePathStreamActions(t *testing.T) {
	id := uuid.New()
	base := "/api/cameras/" + id.String() + "/main"

	cases := []struct {
		suffix string
		kind   pathKind
		debug  bool
	}{
		{"/recordings", pathStreamRecordings, false},
		{"/view.mp4", pathStreamViewMp4, false},
		{"/view.mp4.txt", pathStreamViewMp4, true},
		{"/view.m4s", pathStreamViewMp4Segment, false},
		{"/view.m4s.txt", pathStreamViewMp4Segment, true},
		{"/live.m4s", pathStreamLiveMp4Segments, false},
	}
	for _, c := range cases {
		got := decodePath(base + c.suffix)
		if got.kind != c.kind {
			t.Errorf("decodePath(%q).kind = %v, want %v", base+c.suffix, got.kind, c.kind)
		}
		if got.cameraUUID != id {
			t.Errorf("decodePath(%q).cameraUUID = %v, want %v", base+c.suffix, got.cameraUUID, id)
		}
		if got.streamType != nvrdb.Main {
			t.Errorf("decodePath(%q).streamType = %v, want Main", base+c.suffix, got.streamType)
		}
		if got.debug != c.debug {
			t.Errorf("decodePath(%q).debug = %v, want %v", base+c.suffix, got.debug, c.debug)
		}
	}
}

func TestDecodePathUnknownStreamType(t *testing.T) {
	id := uuid.New()
	got := decodePath("/api/cameras/" + id.String() + "/bogus/recordings")
	if got.kind != pathNotFound {
		t.Errorf("kind = %v, want pathNotFound", got.kind)
	}
}

func TestDecodeInitSegmentPath(t *testing.T) {
	hexSHA1 := strings.Repeat("ab", 20)
	got := decodePath("/api/init/" + hexSHA1 + ".mp4")
	if got.kind != pathInitSegment {
		t.Fatalf("kind = %v, want pathInitSegment", got.kind)
	}
	want := [20]byte{}
	for i := range want {
		want[i] = 0xab
	}
	if got.sha1 != want {
		t.Errorf("sha1 = %x, want %x", got.sha1, want)
	}
	if got.debug {
		t.Error("debug should be false without .txt suffix")
	}
}

func TestDecodeInitSegmentPathDebug(t *testing.T) {
	hexSHA1 := strings.Repeat("00", 20)
	got := decodePath("/api/init/" + hexSHA1 + ".mp4.txt")
	if got.kind != pathInitSegment || !got.debug {
		t.Errorf("kind/debug = %v/%v, want pathInitSegment/true", got.kind, got.debug)
	}
}

func TestDecodeInitSegmentPathBadHex(t *testing.T) {
	got := decodePath("/api/init/" + strings.Repeat("zz", 20) + ".mp4")
	if got.kind != pathNotFound {
		t.Errorf("kind = %v, want pathNotFound", got.kind)
	}
}

func TestDexhex(t *testing.T) {
	out, err := dehex("0123456789abcdef0123456789abcdef012345678")
	if err == nil {
		t.Fatal("expected error for 41-char input")
	}
	_ = out

	out, err = dehex(strings.Repeat("ff", 20))
	if err != nil {
		t.Fatalf("dehex: %v", err)
	}
	for _, b := range out {
		if b != 0xff {
			t.Errorf("byte = %x, want ff", b)
		}
	}
}
