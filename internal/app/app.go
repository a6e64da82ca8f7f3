// Package app implements the object-fetch layer on top of the transport
// engine. A client names (stream, object) pairs on a control stream; the
// server answers with the objects on the requested streams and closes the
// response with a "fin" marker on a reserved reporting stream. The package
// contains no protocol logic of its own — it only consumes Send and Receive.
package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// RequestStreamID carries the client's encoded request.
	RequestStreamID uint32 = 18
	// ReportStreamID carries the server's end-of-response marker.
	ReportStreamID uint32 = 81
)

// FinMarker is the payload closing a response on ReportStreamID.
var FinMarker = []byte("fin")

// Pair binds a response stream to the index of the object it should carry.
type Pair struct {
	StreamID uint32
	Object   int
}

// EncodeRequest renders pairs in the "stream:object" wire form, space
// separated.
func EncodeRequest(pairs []Pair) []byte {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("%d:%d", p.StreamID, p.Object)
	}
	return []byte(strings.Join(parts, " "))
}

// ParseRequest is the inverse of EncodeRequest. A request with no valid
// pairs is an error.
func ParseRequest(raw []byte) ([]Pair, error) {
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return nil, errors.New("empty request")
	}

	pairs := make([]Pair, 0, len(fields))
	for _, field := range fields {
		sid, obj, ok := strings.Cut(field, ":")
		if !ok {
			return nil, errors.Errorf("malformed request pair %q", field)
		}
		id, err := strconv.ParseUint(sid, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "stream id in %q", field)
		}
		idx, err := strconv.Atoi(obj)
		if err != nil {
			return nil, errors.Wrapf(err, "object index in %q", field)
		}
		pairs = append(pairs, Pair{StreamID: uint32(id), Object: idx})
	}
	return pairs, nil
}
