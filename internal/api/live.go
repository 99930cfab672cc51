package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/nightwatch-nvr/nightwatch/internal/mp4"
	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

// liveFragmentNotice is the payload published to the UI hub (directly
// or over the event bus) each time a live fragment is written to an
// open multipart/mixed response, so a connected browser's WebSocket
// can learn a fragment is ready without polling the .m4s stream.
type liveFragmentNotice struct {
	StreamID     int32 `json:"streamId"`
	Recording    int32 `json:"recordingId"`
	StartTime90k int64 `json:"startTime90k"`
	EndTime90k   int64 `json:"endTime90k"`
}

// serveStreamLive handles GET .../live.m4s, ported from
// stream_live_m4s(): subscribes to the stream's live fragment feed and
// writes each one out as a part of a multipart/mixed response, for as
// long as the client keeps the connection open.
func (s *Service) serveStreamLive(w http.ResponseWriter, r *http.Request, c caller, p decodedPath) {
	if !c.permissions.ViewVideo {
		writeError(w, errUnauthorized("view_video required"))
		return
	}

	locked := s.db.Lock()
	openID, writable := locked.Open()
	if !writable {
		locked.Unlock()
		writeError(w, errStatus(http.StatusPreconditionFailed,
			"database is read-only; there are no live streams"))
		return
	}
	cam, ok := locked.GetCamera(p.cameraUUID)
	if !ok {
		locked.Unlock()
		writeError(w, errNotFound("no such camera "+p.cameraUUID.String()))
		return
	}
	stream := cam.Streams[p.streamType.Index()]
	if stream == nil {
		locked.Unlock()
		writeError(w, errNotFound("no such stream "+p.cameraUUID.String()+"/"+p.streamType.String()))
		return
	}
	streamID := stream.ID
	sub := locked.SubscribeLive(streamID)
	locked.Unlock()
	defer func() {
		l := s.db.Lock()
		l.UnsubscribeLive(sub)
		l.Unlock()
	}()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("X-Open-Id", fmt.Sprintf("%d", openID))
	w.Header().Set("Content-Type", "multipart/mixed; boundary=B")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frag, ok := <-sub.Recv():
			if !ok {
				return
			}
			if err := s.writeLiveFragment(w, streamID, frag); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			s.publishHubEvent(HubEventLive, liveFragmentNotice{
				StreamID:     streamID,
				Recording:    frag.Recording,
				StartTime90k: frag.Off90k.Start,
				EndTime90k:   frag.Off90k.End,
			})
		}
	}
}

// writeLiveFragment builds one media segment for frag and writes it as
// a multipart/mixed part, header names ported verbatim from the
// original's stream_live_m4s response.
func (s *Service) writeLiveFragment(w http.ResponseWriter, streamID int32, frag nvrdb.LiveFragment) error {
	locked := s.db.Lock()
	rec, err := locked.GetRecording(context.Background(), streamID, frag.Recording)
	if err != nil {
		locked.Unlock()
		return err
	}
	vse := locked.VideoSampleEntriesByID()[rec.VideoSampleEntryID]
	locked.Unlock()
	if vse == nil {
		return fmt.Errorf("api: recording %d references unknown video sample entry", frag.Recording)
	}

	builder := mp4.NewBuilder(1)
	if err := builder.Append(mp4.Segment{
		RecordingID: rec.ID,
		OpenID:      rec.OpenID,
		Entry:       mp4.SampleEntry{ID: vse.ID, Width: vse.Width, Height: vse.Height, Data: vse.Data},
		Range:       mp4.Range90k{Start: int64(frag.Off90k.Start), End: int64(frag.Off90k.End)},
		Samples: []mp4.Sample{{
			DurationTicks: frag.Off90k.End - frag.Off90k.Start,
			Bytes:         rec.SampleFileBytes,
			IsKey:         true,
		}},
	}); err != nil {
		return err
	}
	entity, err := builder.Finalize(false)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	if err := entity.WriteRange(&body, entity.FullRange()); err != nil {
		return err
	}

	header := fmt.Sprintf(
		"--B\r\nContent-Length: %d\r\nContent-Type: %s\r\nX-Recording-Id: %d\r\nX-Time-Range: %d-%d\r\nX-Video-Sample-Entry-Sha1: %s\r\n\r\n",
		body.Len(), entity.ContentType(), frag.Recording, frag.Off90k.Start, frag.Off90k.End, hex.EncodeToString(vse.SHA1[:]))
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err = w.Write([]byte("\r\n\r\n"))
	return err
}
