package api

import (
	"strings"

	"github.com/google/uuid"

	"github.com/nightwatch-nvr/nightwatch/internal/nvrdb"
)

// pathKind enumerates every distinct shape of request this service
// recognizes, ported from the original web layer's Path enum/decode().
type pathKind int

const (
	pathTopLevel pathKind = iota
	pathRequest
	pathInitSegment
	pathCamera
	pathSignals
	pathStreamRecordings
	pathStreamViewMp4
	pathStreamViewMp4Segment
	pathStreamLiveMp4Segments
	pathLogin
	pathLogout
	pathStatic
	pathNotFound
)

// decodedPath is the parsed form of a request's URI path.
type decodedPath struct {
	kind       pathKind
	sha1       [20]byte
	debug      bool
	cameraUUID uuid.UUID
	streamType nvrdb.StreamType
}

// decodePath classifies a URI path the same way the original router
// did: anything outside "/api/" is a static-file request, and "/api/"
// itself branches on a small set of literal suffixes before falling
// into the "/cameras/<uuid>/<type>/<action>" shape.
func decodePath(path string) decodedPath {
	if !strings.HasPrefix(path, "/api/") {
		return decodedPath{kind: pathStatic}
	}
	rest := path[len("/api"):]
	if rest == "/" {
		return decodedPath{kind: pathTopLevel}
	}
	switch rest {
	case "/login":
		return decodedPath{kind: pathLogin}
	case "/logout":
		return decodedPath{kind: pathLogout}
	case "/request":
		return decodedPath{kind: pathRequest}
	case "/signals":
		return decodedPath{kind: pathSignals}
	}

	if strings.HasPrefix(rest, "/init/") {
		return decodeInitSegmentPath(rest)
	}

	if !strings.HasPrefix(rest, "/cameras/") {
		return decodedPath{kind: pathNotFound}
	}
	rest = rest[len("/cameras/"):]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return decodedPath{kind: pathNotFound}
	}
	rawUUID, rest := rest[:slash], rest[slash+1:]
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return decodedPath{kind: pathNotFound}
	}
	if rest == "" {
		return decodedPath{kind: pathCamera, cameraUUID: id}
	}

	slash = strings.IndexByte(rest, '/')
	if slash < 0 {
		return decodedPath{kind: pathNotFound}
	}
	typeStr, action := rest[:slash], rest[slash:]
	streamType, ok := nvrdb.ParseStreamType(typeStr)
	if !ok {
		return decodedPath{kind: pathNotFound}
	}

	switch action {
	case "/recordings":
		return decodedPath{kind: pathStreamRecordings, cameraUUID: id, streamType: streamType}
	case "/view.mp4":
		return decodedPath{kind: pathStreamViewMp4, cameraUUID: id, streamType: streamType}
	case "/view.mp4.txt":
		return decodedPath{kind: pathStreamViewMp4, cameraUUID: id, streamType: streamType, debug: true}
	case "/view.m4s":
		return decodedPath{kind: pathStreamViewMp4Segment, cameraUUID: id, streamType: streamType}
	case "/view.m4s.txt":
		return decodedPath{kind: pathStreamViewMp4Segment, cameraUUID: id, streamType: streamType, debug: true}
	case "/live.m4s":
		return decodedPath{kind: pathStreamLiveMp4Segments, cameraUUID: id, streamType: streamType}
	default:
		return decodedPath{kind: pathNotFound}
	}
}

func decodeInitSegmentPath(rest string) decodedPath {
	path := rest
	debug := strings.HasSuffix(path, ".txt")
	if debug {
		path = path[:len(path)-len(".txt")]
	}
	// "/init/" (6) + 40 hex chars + ".mp4" (4) == 50.
	if len(path) != 50 || !strings.HasSuffix(path, ".mp4") {
		return decodedPath{kind: pathNotFound}
	}
	hexSHA1 := path[len("/init/") : len(path)-len(".mp4")]
	sha1, err := dehex(hexSHA1)
	if err != nil {
		return decodedPath{kind: pathNotFound}
	}
	return decodedPath{kind: pathInitSegment, sha1: sha1, debug: debug}
}

func dehex(s string) ([20]byte, error) {
	var out [20]byte
	if len(s) != 40 {
		return out, errBadRequest("sha1 must be 40 hex characters")
	}
	for i := 0; i < 20; i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return out, errBadRequest("invalid hex in sha1")
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}
