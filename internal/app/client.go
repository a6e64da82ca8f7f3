package app

import (
	"bytes"
	"math/rand"
	"net"

	"github.com/pkg/errors"

	"github.com/1ureka/miniquic/internal/engine"
)

// RandomPairs draws n request pairs with distinct stream ids and distinct
// object indexes, both from [0, count). At most count pairs are distinct,
// so n is clamped to [0, count].
func RandomPairs(n, count int, rng *rand.Rand) []Pair {
	if n > count {
		n = count
	}
	if n < 0 {
		n = 0
	}
	streams := rng.Perm(count)
	objects := rng.Perm(count)

	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{StreamID: uint32(streams[i]), Object: objects[i]}
	}
	return pairs
}

// Fetch sends a request for pairs to the server and drains responses until
// the fin marker arrives on the reporting stream. It returns the
// accumulated per-stream payloads, fin stream excluded. On error the
// payloads collected so far are returned alongside it.
func Fetch(eng *engine.Engine, server *net.UDPAddr, pairs []Pair) (map[uint32][]byte, error) {
	if _, err := eng.Send(server, map[uint32][]byte{RequestStreamID: EncodeRequest(pairs)}); err != nil {
		return nil, errors.Wrap(err, "send request")
	}

	accumulated := make(map[uint32][]byte)
	for !bytes.Equal(accumulated[ReportStreamID], FinMarker) {
		_, chunk, err := eng.Receive(engine.DefaultMaxReceiveBytes)
		if err != nil {
			return accumulated, errors.Wrap(err, "receive response")
		}
		for id, payload := range chunk {
			accumulated[id] = append(accumulated[id], payload...)
		}
	}

	delete(accumulated, ReportStreamID)
	return accumulated, nil
}
