package app

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/1ureka/miniquic/internal/engine"
	"github.com/1ureka/miniquic/internal/util"
)

// Catalog defaults for the demo server.
const (
	DefaultObjectCount = 10
	DefaultMinObjSize  = 1 << 20 // 1 MiB
	DefaultMaxObjSize  = 2 << 20 // 2 MiB
)

// Server owns a bound engine and a fixed catalog of random objects, served
// by index for the lifetime of the process.
type Server struct {
	eng     *engine.Engine
	objects [][]byte
}

// NewServer generates count random objects sized uniformly in
// [minSize, maxSize] and wraps eng into a server for them.
func NewServer(eng *engine.Engine, count, minSize, maxSize int, rng *rand.Rand) *Server {
	objects := make([][]byte, count)
	for i := range objects {
		obj := make([]byte, minSize+rng.Intn(maxSize-minSize+1))
		rng.Read(obj)
		objects[i] = obj
	}
	return &Server{eng: eng, objects: objects}
}

// ObjectCount returns the catalog size.
func (s *Server) ObjectCount() int {
	return len(s.objects)
}

// Object returns the catalog entry at idx, or nil when out of range. The
// returned slice is the catalog's own backing array; callers must not
// modify it.
func (s *Server) Object(idx int) []byte {
	if idx < 0 || idx >= len(s.objects) {
		return nil
	}
	return s.objects[idx]
}

// ServeOne waits for one client request, streams the response back, and
// closes it with the fin marker. Datagrams carrying no request, and requests
// that fail to parse, are dropped with a warning and the wait continues.
func (s *Server) ServeOne() error {
	for {
		addr, received, err := s.eng.Receive(engine.DefaultMaxReceiveBytes)
		if err != nil {
			return errors.Wrap(err, "receive request")
		}

		raw, ok := received[RequestStreamID]
		if !ok {
			continue
		}
		pairs, err := ParseRequest(raw)
		if err != nil {
			util.LogWarning("rejecting request from %s: %v", addr, err)
			continue
		}

		response := make(map[uint32][]byte, len(pairs))
		for _, p := range pairs {
			if p.Object < 0 || p.Object >= len(s.objects) {
				util.LogWarning("request from %s names object %d, catalog has %d — skipping",
					addr, p.Object, len(s.objects))
				continue
			}
			response[p.StreamID] = s.objects[p.Object]
			util.LogInfo("stream %d ← object %d (%d bytes)", p.StreamID, p.Object, len(s.objects[p.Object]))
		}

		if len(response) > 0 {
			if _, err := s.eng.Send(addr, response); err != nil {
				return errors.Wrapf(err, "send response to %s", addr)
			}
			s.eng.LastStats().Render()
		}

		if _, err := s.eng.Send(addr, map[uint32][]byte{ReportStreamID: FinMarker}); err != nil {
			return errors.Wrapf(err, "send fin to %s", addr)
		}
		return nil
	}
}

// Run serves requests until ctx is cancelled or a serve fails. Cancellation
// is only observed between requests; the engine itself has no cancellation
// hook.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.ServeOne(); err != nil {
			return err
		}
	}
}
