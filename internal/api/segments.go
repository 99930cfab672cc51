package api

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

// segmentsRE is the compact segment-spec grammar: a required recording
// id (or dash-joined inclusive range), an optional "@<open-id>", and an
// optional ".<start>-<end>" trim in 90kHz ticks relative to the first
// requested recording's start. Ported verbatim from the original
// router's SEGMENTS_RE.
var segmentsRE = regexp.MustCompile(`^(\d+)(-\d+)?(@\d+)?(?:\.(\d+)?-(\d+)?)?$`)

// segments is a parsed segment-spec query value.
type segments struct {
	ids       nvrdb.IDRange // half-open
	openID    int64
	hasOpenID bool
	startTime int64
	endTime   int64
	hasEndTime bool
}

// parseSegments parses one comma-separated segment-spec element. The
// grammar's end id is inclusive on the wire; this converts it to the
// half-open range used throughout this package.
func parseSegments(input string) (segments, error) {
	m := segmentsRE.FindStringSubmatch(input)
	if m == nil {
		return segments{}, fmt.Errorf("invalid segments spec %q", input)
	}

	idsStart, err := strconv.ParseInt(m[1], 10, 32)
	if err != nil {
		return segments{}, fmt.Errorf("invalid start id in %q", input)
	}
	idsEnd := idsStart
	if m[2] != "" {
		idsEnd, err = strconv.ParseInt(m[2][1:], 10, 32)
		if err != nil {
			return segments{}, fmt.Errorf("invalid end id in %q", input)
		}
	}
	idsEnd++

	var openID int64
	var hasOpenID bool
	if m[3] != "" {
		openID, err = strconv.ParseInt(m[3][1:], 10, 32)
		if err != nil {
			return segments{}, fmt.Errorf("invalid open id in %q", input)
		}
		hasOpenID = true
	}

	if idsStart < 0 || idsEnd <= idsStart {
		return segments{}, fmt.Errorf("empty or negative id range in %q", input)
	}

	var startTime int64
	if m[4] != "" {
		startTime, err = strconv.ParseInt(m[4], 10, 64)
		if err != nil {
			return segments{}, fmt.Errorf("invalid start time in %q", input)
		}
	}
	if startTime < 0 {
		return segments{}, fmt.Errorf("negative start time in %q", input)
	}

	var endTime int64
	var hasEndTime bool
	if m[5] != "" {
		endTime, err = strconv.ParseInt(m[5], 10, 64)
		if err != nil {
			return segments{}, fmt.Errorf("invalid end time in %q", input)
		}
		if endTime <= startTime {
			return segments{}, fmt.Errorf("end time must exceed start time in %q", input)
		}
		hasEndTime = true
	}

	return segments{
		ids:        nvrdb.IDRange{Start: int32(idsStart), End: int32(idsEnd)},
		openID:     openID,
		hasOpenID:  hasOpenID,
		startTime:  startTime,
		endTime:    endTime,
		hasEndTime: hasEndTime,
	}, nil
}
