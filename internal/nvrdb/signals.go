package nvrdb

import (
	"context"
	"database/sql"
	"fmt"
)

// SignalType names a category of signal (e.g. "doorbell", "motion") a
// client can report state changes for.
type SignalType struct {
	ID        int32
	Name      string
	ShortName string
}

// SignalChange is one state transition recorded at a point in time.
type SignalChange struct {
	When90k  int64
	SignalID int32
	State    int16
}

// ListSignalChanges returns every recorded state change in [timeRange)
// ordered by time, grounded on get_signals() in the original web layer.
func (l *Locked) ListSignalChanges(ctx context.Context, timeRange TimeRange) ([]SignalChange, error) {
	rows, err := l.sqlDB().QueryContext(ctx, `
		SELECT when_90k, signal_id, state FROM signal_change
		WHERE when_90k >= ? AND when_90k < ?
		ORDER BY when_90k ASC`, timeRange.Start, timeRange.End)
	if err != nil {
		return nil, fmt.Errorf("%w: list signal changes: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []SignalChange
	for rows.Next() {
		var c SignalChange
		if err := rows.Scan(&c.When90k, &c.SignalID, &c.State); err != nil {
			return nil, fmt.Errorf("%w: scan signal change: %v", ErrDatabase, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateSignals records that each signal held the given state across
// tr, one change row at tr.Start per signal. If tr.End is bounded (not
// MaxTime90k), a second row reverts the signal to whatever state held
// immediately before tr.Start (0, i.e. unknown, if none is on record),
// so the step function is only perturbed for the requested range.
// Grounded on post_signals()/update_signals() in the original web
// layer; the caller (internal/api/handlers_json.go) already checked
// the update_signals permission before reaching here.
func (l *Locked) UpdateSignals(ctx context.Context, tr TimeRange, signalIDs []int32, states []int16) error {
	if len(signalIDs) != len(states) {
		return fmt.Errorf("nvrdb: signal ids and states length mismatch")
	}
	tx, err := l.sqlDB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin update signals: %v", ErrDatabase, err)
	}
	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO signal_change (when_90k, signal_id, state) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: prepare update signals: %v", ErrDatabase, err)
	}
	defer insert.Close()
	prior, err := tx.PrepareContext(ctx, `
		SELECT state FROM signal_change WHERE signal_id = ? AND when_90k < ?
		ORDER BY when_90k DESC LIMIT 1`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: prepare prior signal state: %v", ErrDatabase, err)
	}
	defer prior.Close()

	for i, id := range signalIDs {
		if _, err := insert.ExecContext(ctx, tr.Start, id, states[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: insert signal change: %v", ErrDatabase, err)
		}
		if tr.End >= MaxTime90k {
			continue
		}
		var priorState int16
		switch err := prior.QueryRowContext(ctx, id, tr.Start).Scan(&priorState); {
		case err == sql.ErrNoRows:
			priorState = 0
		case err != nil:
			_ = tx.Rollback()
			return fmt.Errorf("%w: query prior signal state: %v", ErrDatabase, err)
		}
		if _, err := insert.ExecContext(ctx, tr.End, id, priorState); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: insert signal change: %v", ErrDatabase, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit update signals: %v", ErrDatabase, err)
	}
	return nil
}

// ListSignalTypes returns every known signal type, used to populate the
// top-level JSON response's "signalTypes" array.
func (l *Locked) ListSignalTypes(ctx context.Context) ([]SignalType, error) {
	rows, err := l.sqlDB().QueryContext(ctx, `SELECT id, name, short_name FROM signal_type ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list signal types: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []SignalType
	for rows.Next() {
		var t SignalType
		if err := rows.Scan(&t.ID, &t.Name, &t.ShortName); err != nil {
			return nil, fmt.Errorf("%w: scan signal type: %v", ErrDatabase, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
