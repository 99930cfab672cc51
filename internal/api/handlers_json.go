package api

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
	"github.com/nightwatch-nvr/nightwatch/internal/nvrjson"
)

// serveTopLevel handles GET /api/, ported from top_level(). The days
// query parameter is not read: streams are listed without per-day
// coverage.
func (s *Service) serveTopLevel(w http.ResponseWriter, r *http.Request, c caller) {
	q := r.URL.Query()
	wantCameraConfigs := q.Get("cameraConfigs") == "true"

	if wantCameraConfigs && !c.permissions.ReadCameraConfigs {
		writeError(w, errUnauthorized("read_camera_configs required"))
		return
	}

	locked := s.db.Lock()

	out := nvrjson.TopLevel{
		TimeZoneName: s.cfg.TimeZoneName,
		Cameras:      buildCameraList(locked),
	}
	if c.session != nil {
		out.Session = c.session
	}
	if types, err := locked.ListSignalTypes(r.Context()); err == nil {
		for _, t := range types {
			out.SignalTypes = append(out.SignalTypes, nvrjson.SignalType{
				ID: t.ID, Name: t.Name, ShortName: t.ShortName,
			})
		}
	}
	locked.Unlock()
	writeJSON(w, out)
}

func buildCameraList(locked *nvrdb.Locked) []nvrjson.Camera {
	var out []nvrjson.Camera
	for id, streams := range camerasFromStreams(locked) {
		out = append(out, nvrjson.Camera{UUID: id.String(), Streams: streams})
	}
	return out
}

// camerasFromStreams groups the stream cache by camera for the
// top-level listing; the per-camera detail endpoint (serveCamera) does
// its own lookup instead of reusing this, since it also needs
// description/short name.
func camerasFromStreams(locked *nvrdb.Locked) map[uuid.UUID]map[string]nvrjson.Stream {
	out := make(map[uuid.UUID]map[string]nvrjson.Stream)
	for _, st := range locked.StreamsByID() {
		m, ok := out[st.CameraID]
		if !ok {
			m = make(map[string]nvrjson.Stream)
			out[st.CameraID] = m
		}
		m[st.Type.String()] = nvrjson.Stream{RecordDurationSec: st.RecordDurationSec}
	}
	return out
}

// serveCamera handles GET /api/cameras/<uuid>/, ported from camera().
func (s *Service) serveCamera(w http.ResponseWriter, r *http.Request, p decodedPath) {
	locked := s.db.Lock()
	cam, ok := locked.GetCamera(p.cameraUUID)
	locked.Unlock()
	if !ok {
		writeError(w, errNotFound("no such camera "+p.cameraUUID.String()))
		return
	}

	out := nvrjson.Camera{
		UUID:        cam.ID.String(),
		ShortName:   cam.ShortName,
		Description: cam.Description,
		Streams:     make(map[string]nvrjson.Stream),
	}
	for _, st := range cam.Streams {
		if st == nil {
			continue
		}
		out.Streams[st.Type.String()] = nvrjson.Stream{RecordDurationSec: st.RecordDurationSec}
	}
	writeJSON(w, out)
}

// serveStreamRecordings handles GET .../recordings, ported from
// stream_recordings(): it looks up the stream, parses the optional
// startTime90k/endTime90k/split90k query parameters, and serializes
// each aggregated recording run.
func (s *Service) serveStreamRecordings(w http.ResponseWriter, r *http.Request, p decodedPath) {
	timeRange := nvrdb.FullTimeRange()
	var split int64 = int64(nvrdb.MaxDuration90k)

	q := r.URL.Query()
	if v := q.Get("startTime90k"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, errBadRequest("unparseable startTime90k"))
			return
		}
		timeRange.Start = n
	}
	if v := q.Get("endTime90k"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, errBadRequest("unparseable endTime90k"))
			return
		}
		timeRange.End = n
	}
	if v := q.Get("split90k"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, errBadRequest("unparseable split90k"))
			return
		}
		split = n
	}

	locked := s.db.Lock()

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

	aggs, err := locked.ListAggregatedRecordings(r.Context(), stream.ID, timeRange, split)
	vses := locked.VideoSampleEntriesByID()
	locked.Unlock()
	if err != nil {
		writeError(w, errInternal(err.Error()))
		return
	}

	out := nvrjson.ListRecordings{}
	for _, a := range aggs {
		endID := a.IDs.End - 1
		rec := nvrjson.Recording{
			StartID:         a.IDs.Start,
			StartTime90k:    a.Time.Start,
			EndTime90k:      a.Time.End,
			SampleFileBytes: a.SampleFileBytes,
			OpenID:          a.OpenID,
			Growing:         a.Growing,
		}
		if endID != a.IDs.Start {
			rec.EndID = endID
		}
		if vse, ok := vses[a.VideoSampleEntryID]; ok {
			rec.VideoSampleEntryWidth = vse.Width
			rec.VideoSampleEntryHeight = vse.Height
			rec.VideoSampleEntrySha1 = hex.EncodeToString(vse.SHA1[:])
		}
		out.Recordings = append(out.Recordings, rec)
	}
	writeJSON(w, out)
}

// serveGetSignals handles GET /api/signals, ported from get_signals().
func (s *Service) serveGetSignals(w http.ResponseWriter, r *http.Request) {
	timeRange := nvrdb.FullTimeRange()
	q := r.URL.Query()
	if v := q.Get("startTime90k"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, errBadRequest("unparseable startTime90k"))
			return
		}
		timeRange.Start = n
	}
	if v := q.Get("endTime90k"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, errBadRequest("unparseable endTime90k"))
			return
		}
		timeRange.End = n
	}

	locked := s.db.Lock()
	changes, err := locked.ListSignalChanges(r.Context(), timeRange)
	locked.Unlock()
	if err != nil {
		writeError(w, errInternal(err.Error()))
		return
	}

	out := nvrjson.Signals{}
	for _, c := range changes {
		out.Times = append(out.Times, c.When90k)
		out.Signals = append(out.Signals, c.SignalID)
		out.States = append(out.States, c.State)
	}
	writeJSON(w, out)
}

// servePostSignals handles POST /api/signals, ported from
// post_signals(). Requires update_signals; records every signal's new
// state across the requested [start, end) range. start defaults to
// now; end is either the absolute relEndTime90k (endBase "epoch") or
// now+relEndTime90k (endBase "now", the default, with relEndTime90k
// itself defaulting to 0).
func (s *Service) servePostSignals(w http.ResponseWriter, r *http.Request, c caller) {
	if !c.permissions.UpdateSignals {
		writeError(w, errUnauthorized("update_signals required"))
		return
	}
	var req nvrjson.PostSignalsRequest
	if apiErr := decodeJSONBody(r, &req); apiErr != nil {
		writeError(w, apiErr)
		return
	}
	if len(req.Signals) != len(req.States) {
		writeError(w, errBadRequest("signalIds and states must have equal length"))
		return
	}

	now := nvrdb.Time90k(s.db.Clocks().Realtime())
	start := now
	if req.StartTime90k != nil {
		start = *req.StartTime90k
	}
	var end int64
	switch req.EndBase {
	case nvrjson.PostSignalsEndBaseEpoch:
		if req.RelEndTime90k == nil {
			writeError(w, errBadRequest("must specify relEndTime90k when endBase is epoch"))
			return
		}
		end = *req.RelEndTime90k
	case nvrjson.PostSignalsEndBaseNow, "":
		var delta int64
		if req.RelEndTime90k != nil {
			delta = *req.RelEndTime90k
		}
		end = now + delta
	default:
		writeError(w, errBadRequest("endBase must be \"epoch\" or \"now\""))
		return
	}

	locked := s.db.Lock()
	err := locked.UpdateSignals(r.Context(), nvrdb.TimeRange{Start: start, End: end}, req.Signals, req.States)
	locked.Unlock()
	if err != nil {
		writeError(w, errInternal(err.Error()))
		return
	}
	s.publishHubEvent(HubEventSignal, req)
	writeJSON(w, nvrjson.PostSignalsResponse{Time90k: now})
}
