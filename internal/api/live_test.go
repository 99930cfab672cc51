package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

func TestServeStreamLiveRejectsWithoutPermission(t *testing.T) {
	s := newTestService(t)
	id := uuid.New()
	p := decodedPath{kind: pathStreamLiveMp4Segments, cameraUUID: id, streamType: nvrdb.Main}

	r := httptest.NewRequest(http.MethodGet, "/api/cameras/"+id.String()+"/main/live.m4s", nil)
	w := httptest.NewRecorder()
	s.serveStreamLive(w, r, caller{}, p)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestServeStreamLiveUnknownCamera(t *testing.T) {
	s := newTestService(t)
	id := uuid.New()
	p := decodedPath{kind: pathStreamLiveMp4Segments, cameraUUID: id, streamType: nvrdb.Main}

	r := httptest.NewRequest(http.MethodGet, "/api/cameras/"+id.String()+"/main/live.m4s", nil)
	w := httptest.NewRecorder()
	s.serveStreamLive(w, r, caller{permissions: nvrdb.Permissions{ViewVideo: true}}, p)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func seedCameraAndStream(t *testing.T, s *Service, id uuid.UUID) (streamID int32, vseID int64) {
	t.Helper()
	ctx := context.Background()
	l := s.db.Lock()
	if err := l.InsertCamera(ctx, id, "cam", ""); err != nil {
		l.Unlock()
		t.Fatalf("InsertCamera: %v", err)
	}
	if err := l.InsertStream(ctx, 1, id, nvrdb.Main, 60); err != nil {
		l.Unlock()
		t.Fatalf("InsertStream: %v", err)
	}
	if err := l.InsertVideoSampleEntry(ctx, nvrdb.VideoSampleEntry{ID: 1, Width: 640, Height: 480, Data: []byte{0x01}}); err != nil {
		l.Unlock()
		t.Fatalf("InsertVideoSampleEntry: %v", err)
	}
	l.Unlock()
	if err := s.db.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return 1, 1
}

func TestServeStreamLiveStreamsFragment(t *testing.T) {
	s := newTestService(t)
	id := uuid.New()
	streamID, vseID := seedCameraAndStream(t, s, id)

	l := s.db.Lock()
	if err := l.InsertRecording(context.Background(), nvrdb.Recording{
		StreamID: streamID, ID: 1, OpenID: 1,
		StartTime90k: 0, Duration90k: 90000,
		SampleFileBytes: 1000, VideoSampleEntryID: vseID, VideoSamples: 30,
		Growing: true,
	}); err != nil {
		l.Unlock()
		t.Fatalf("InsertRecording: %v", err)
	}
	l.Unlock()

	p := decodedPath{kind: pathStreamLiveMp4Segments, cameraUUID: id, streamType: nvrdb.Main}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	r := httptest.NewRequest(http.MethodGet, "/api/cameras/"+id.String()+"/main/live.m4s", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.serveStreamLive(w, r, caller{permissions: nvrdb.Permissions{ViewVideo: true}}, p)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	l = s.db.Lock()
	l.PublishLive(streamID, nvrdb.LiveFragment{Recording: 1, Off90k: nvrdb.Range90k{Start: 0, End: 90000}})
	l.Unlock()

	<-done

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/mixed") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "X-Recording-Id: 1") {
		t.Errorf("expected body to contain the recording id header, got %q", body)
	}
	if !strings.Contains(body, "--B") {
		t.Errorf("expected multipart boundary in body, got %q", body)
	}
}
