package nvrdb

import (
	"context"
	"database/sql"
	"fmt"
)

// ListAggregatedRecordings walks recordings for streamID within
// timeRange in id order and collapses maximal contiguous runs (same
// open id, no gap between end-of-one and start-of-next, same video
// sample entry) into a single AggregatedRecording per run. This is the
// algorithm the "list recordings" JSON endpoint and the calendar UI
// both depend on; grounded on stream_recordings() in the original web
// layer, which does the same single forward pass.
func (l *Locked) ListAggregatedRecordings(ctx context.Context, streamID int32, timeRange TimeRange, forceSplitDuration90k int64) ([]AggregatedRecording, error) {
	rows, err := l.sqlDB().QueryContext(ctx, `
		SELECT recording_id, open_id, start_time_90k, duration_90k, sample_file_bytes,
		       video_sample_entry_id, video_samples, first_uncommitted, growing
		FROM recording
		WHERE stream_id = ? AND start_time_90k < ? AND start_time_90k + duration_90k > ?
		ORDER BY recording_id ASC`, streamID, timeRange.End, timeRange.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: list recordings: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []AggregatedRecording
	var cur *AggregatedRecording
	for rows.Next() {
		var r Recording
		var firstUncommitted sql.NullInt64
		var growing int
		if err := rows.Scan(&r.ID, &r.OpenID, &r.StartTime90k, &r.Duration90k, &r.SampleFileBytes,
			&r.VideoSampleEntryID, &r.VideoSamples, &firstUncommitted, &growing); err != nil {
			return nil, fmt.Errorf("%w: scan recording: %v", ErrDatabase, err)
		}
		r.StreamID = streamID
		r.Growing = growing != 0
		if firstUncommitted.Valid {
			r.FirstUncommitted = int32(firstUncommitted.Int64)
			r.HasFirstUncommitted = true
		}

		if cur != nil &&
			cur.OpenID == r.OpenID &&
			cur.VideoSampleEntryID == r.VideoSampleEntryID &&
			!cur.Growing &&
			cur.Time.End == r.StartTime90k &&
			(forceSplitDuration90k <= 0 || cur.Time.End-cur.Time.Start < forceSplitDuration90k) {
			cur.IDs.End = r.ID + 1
			cur.Time.End = r.EndTime90k()
			cur.SampleFileBytes += int64(r.SampleFileBytes)
			cur.VideoSamples += int64(r.VideoSamples)
			cur.Growing = r.Growing
			if r.HasFirstUncommitted {
				cur.FirstUncommitted = r.FirstUncommitted
				cur.HasFirstUncommitted = true
			}
			continue
		}

		if cur != nil {
			out = append(out, *cur)
		}
		cur = &AggregatedRecording{
			IDs:                 IDRange{Start: r.ID, End: r.ID + 1},
			Time:                TimeRange{Start: r.StartTime90k, End: r.EndTime90k()},
			SampleFileBytes:     int64(r.SampleFileBytes),
			OpenID:              r.OpenID,
			FirstUncommitted:    r.FirstUncommitted,
			HasFirstUncommitted: r.HasFirstUncommitted,
			VideoSamples:        int64(r.VideoSamples),
			VideoSampleEntryID:  r.VideoSampleEntryID,
			Growing:             r.Growing,
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out, rows.Err()
}

// ListRecordingsByID returns every individual recording for streamID
// whose id falls in ids, in ascending order. Used by the view handler
// (internal/api/view.go) once internal/api/segments.go has turned a
// request's compact grammar into a concrete id range.
func (l *Locked) ListRecordingsByID(ctx context.Context, streamID int32, ids IDRange) ([]Recording, error) {
	rows, err := l.sqlDB().QueryContext(ctx, `
		SELECT recording_id, open_id, start_time_90k, duration_90k, sample_file_bytes,
		       video_sample_entry_id, video_samples, first_uncommitted, growing
		FROM recording
		WHERE stream_id = ? AND recording_id >= ? AND recording_id < ?
		ORDER BY recording_id ASC`, streamID, ids.Start, ids.End)
	if err != nil {
		return nil, fmt.Errorf("%w: list recordings by id: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		var firstUncommitted sql.NullInt64
		var growing int
		if err := rows.Scan(&r.ID, &r.OpenID, &r.StartTime90k, &r.Duration90k, &r.SampleFileBytes,
			&r.VideoSampleEntryID, &r.VideoSamples, &firstUncommitted, &growing); err != nil {
			return nil, fmt.Errorf("%w: scan recording: %v", ErrDatabase, err)
		}
		r.StreamID = streamID
		r.Growing = growing != 0
		if firstUncommitted.Valid {
			r.FirstUncommitted = int32(firstUncommitted.Int64)
			r.HasFirstUncommitted = true
		}
		out = append(out, r)
	}
	if len(out) != int(ids.Len()) {
		return nil, fmt.Errorf("%w: recording %d..%d has gaps", ErrNoSuchRecording, ids.Start, ids.End)
	}
	return out, rows.Err()
}

// GetRecording fetches a single recording by (streamID, recordingID).
func (l *Locked) GetRecording(ctx context.Context, streamID, recordingID int32) (Recording, error) {
	row := l.sqlDB().QueryRowContext(ctx, `
		SELECT open_id, start_time_90k, duration_90k, sample_file_bytes,
		       video_sample_entry_id, video_samples, first_uncommitted, growing
		FROM recording WHERE stream_id = ? AND recording_id = ?`, streamID, recordingID)
	var r Recording
	var firstUncommitted sql.NullInt64
	var growing int
	if err := row.Scan(&r.OpenID, &r.StartTime90k, &r.Duration90k, &r.SampleFileBytes,
		&r.VideoSampleEntryID, &r.VideoSamples, &firstUncommitted, &growing); err != nil {
		if err == sql.ErrNoRows {
			return Recording{}, ErrNoSuchRecording
		}
		return Recording{}, fmt.Errorf("%w: get recording: %v", ErrDatabase, err)
	}
	r.StreamID = streamID
	r.ID = recordingID
	r.Growing = growing != 0
	if firstUncommitted.Valid {
		r.FirstUncommitted = int32(firstUncommitted.Int64)
		r.HasFirstUncommitted = true
	}
	return r, nil
}

// InsertRecording is a test/fixture helper: production recording writes
// belong to the capture pipeline, out of scope here (spec.md §1), but
// tests need a way to seed rows this package can then read back.
func (l *Locked) InsertRecording(ctx context.Context, r Recording) error {
	var firstUncommitted sql.NullInt64
	if r.HasFirstUncommitted {
		firstUncommitted = sql.NullInt64{Int64: int64(r.FirstUncommitted), Valid: true}
	}
	growing := 0
	if r.Growing {
		growing = 1
	}
	_, err := l.sqlDB().ExecContext(ctx, `
		INSERT INTO recording (stream_id, recording_id, open_id, start_time_90k, duration_90k,
		                        sample_file_bytes, video_sample_entry_id, video_samples,
		                        first_uncommitted, growing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StreamID, r.ID, r.OpenID, r.StartTime90k, r.Duration90k, r.SampleFileBytes,
		r.VideoSampleEntryID, r.VideoSamples, firstUncommitted, growing)
	if err != nil {
		return fmt.Errorf("%w: insert recording: %v", ErrDatabase, err)
	}
	return nil
}
