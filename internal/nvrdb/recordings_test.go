package nvrdb

import (
	"context"
	"testing"
)

func insertTestVideoSampleEntry(t *testing.T, db *Database, id int64) {
	t.Helper()
	if _, err := db.sql.ExecContext(context.Background(), `
		INSERT INTO video_sample_entry (id, width, height, sha1, data) VALUES (?, ?, ?, ?, ?)`,
		id, 1920, 1080, make([]byte, 20), []byte{0x01, 0x02}); err != nil {
		t.Fatalf("insert video_sample_entry: %v", err)
	}
}

func TestListRecordingsByID(t *testing.T) {
	db := openTestDB(t)
	insertTestVideoSampleEntry(t, db, 1)

	l := db.Lock()
	for i := int32(1); i <= 3; i++ {
		r := Recording{
			StreamID: 5, ID: i, OpenID: 1,
			StartTime90k: int64(i-1) * 90000, Duration90k: 90000,
			SampleFileBytes: 1000, VideoSampleEntryID: 1, VideoSamples: 30,
		}
		if err := l.InsertRecording(context.Background(), r); err != nil {
			l.Unlock()
			t.Fatalf("InsertRecording(%d): %v", i, err)
		}
	}
	l.Unlock()

	l = db.Lock()
	defer l.Unlock()
	recs, err := l.ListRecordingsByID(context.Background(), 5, IDRange{Start: 1, End: 4})
	if err != nil {
		t.Fatalf("ListRecordingsByID: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len(recs) = %d, want 3", len(recs))
	}
	for i, r := range recs {
		if r.ID != int32(i+1) {
			t.Errorf("recs[%d].ID = %d, want %d", i, r.ID, i+1)
		}
	}
}

func TestListRecordingsByIDGapIsError(t *testing.T) {
	db := openTestDB(t)
	insertTestVideoSampleEntry(t, db, 1)

	l := db.Lock()
	r := Recording{
		StreamID: 5, ID: 1, OpenID: 1,
		StartTime90k: 0, Duration90k: 90000,
		SampleFileBytes: 1000, VideoSampleEntryID: 1, VideoSamples: 30,
	}
	if err := l.InsertRecording(context.Background(), r); err != nil {
		l.Unlock()
		t.Fatalf("InsertRecording: %v", err)
	}
	l.Unlock()

	l = db.Lock()
	defer l.Unlock()
	// Recording 2 was never inserted: requesting [1,3) must fail rather
	// than silently return a shorter slice.
	if _, err := l.ListRecordingsByID(context.Background(), 5, IDRange{Start: 1, End: 3}); err == nil {
		t.Fatal("expected an error for a gappy id range")
	}
}

func TestGetRecordingNotFound(t *testing.T) {
	db := openTestDB(t)
	l := db.Lock()
	defer l.Unlock()
	if _, err := l.GetRecording(context.Background(), 5, 1); err != ErrNoSuchRecording {
		t.Errorf("err = %v, want ErrNoSuchRecording", err)
	}
}

func TestListAggregatedRecordingsCollapsesContiguousRun(t *testing.T) {
	db := openTestDB(t)
	insertTestVideoSampleEntry(t, db, 1)

	l := db.Lock()
	for i := int32(1); i <= 3; i++ {
		r := Recording{
			StreamID: 5, ID: i, OpenID: 1,
			StartTime90k: int64(i-1) * 90000, Duration90k: 90000,
			SampleFileBytes: 1000, VideoSampleEntryID: 1, VideoSamples: 30,
		}
		if err := l.InsertRecording(context.Background(), r); err != nil {
			l.Unlock()
			t.Fatalf("InsertRecording(%d): %v", i, err)
		}
	}
	l.Unlock()

	l = db.Lock()
	defer l.Unlock()
	aggs, err := l.ListAggregatedRecordings(context.Background(), 5, FullTimeRange(), 0)
	if err != nil {
		t.Fatalf("ListAggregatedRecordings: %v", err)
	}
	if len(aggs) != 1 {
		t.Fatalf("len(aggs) = %d, want 1 (contiguous run should collapse)", len(aggs))
	}
	agg := aggs[0]
	if agg.IDs.Start != 1 || agg.IDs.End != 4 {
		t.Errorf("IDs = %+v, want [1,4)", agg.IDs)
	}
	if agg.Time.Start != 0 || agg.Time.End != 270000 {
		t.Errorf("Time = %+v, want [0,270000)", agg.Time)
	}
	if agg.SampleFileBytes != 3000 {
		t.Errorf("SampleFileBytes = %d, want 3000", agg.SampleFileBytes)
	}
}

func TestListAggregatedRecordingsSplitsOnGap(t *testing.T) {
	db := openTestDB(t)
	insertTestVideoSampleEntry(t, db, 1)

	l := db.Lock()
	recs := []Recording{
		{StreamID: 5, ID: 1, OpenID: 1, StartTime90k: 0, Duration90k: 90000, VideoSampleEntryID: 1},
		// Gap: recording 2 starts well after recording 1 ends.
		{StreamID: 5, ID: 2, OpenID: 1, StartTime90k: 500000, Duration90k: 90000, VideoSampleEntryID: 1},
	}
	for _, r := range recs {
		if err := l.InsertRecording(context.Background(), r); err != nil {
			l.Unlock()
			t.Fatalf("InsertRecording: %v", err)
		}
	}
	l.Unlock()

	l = db.Lock()
	defer l.Unlock()
	aggs, err := l.ListAggregatedRecordings(context.Background(), 5, FullTimeRange(), 0)
	if err != nil {
		t.Fatalf("ListAggregatedRecordings: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("len(aggs) = %d, want 2 (gap should split runs)", len(aggs))
	}
}

func TestListAggregatedRecordingsSplitsOnDifferentOpenID(t *testing.T) {
	db := openTestDB(t)
	insertTestVideoSampleEntry(t, db, 1)

	l := db.Lock()
	recs := []Recording{
		{StreamID: 5, ID: 1, OpenID: 1, StartTime90k: 0, Duration90k: 90000, VideoSampleEntryID: 1},
		{StreamID: 5, ID: 2, OpenID: 2, StartTime90k: 90000, Duration90k: 90000, VideoSampleEntryID: 1},
	}
	for _, r := range recs {
		if err := l.InsertRecording(context.Background(), r); err != nil {
			l.Unlock()
			t.Fatalf("InsertRecording: %v", err)
		}
	}
	l.Unlock()

	l = db.Lock()
	defer l.Unlock()
	aggs, err := l.ListAggregatedRecordings(context.Background(), 5, FullTimeRange(), 0)
	if err != nil {
		t.Fatalf("ListAggregatedRecordings: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("len(aggs) = %d, want 2 (different open id should split runs)", len(aggs))
	}
}
