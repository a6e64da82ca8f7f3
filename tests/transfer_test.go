package tests

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/1ureka/miniquic/internal/app"
	"github.com/1ureka/miniquic/internal/engine"
)

// testOpts keeps the loopback exchanges fast and reproducible.
func testOpts(seed int64) engine.Options {
	return engine.Options{
		AckTimeout: 500 * time.Millisecond,
		Rand:       rand.New(rand.NewSource(seed)),
	}
}

// TestFetchSingleObject runs the full request/response flow over real
// loopback sockets: request one object, drain until fin, compare bytes.
func TestFetchSingleObject(t *testing.T) {
	serverEng, err := engine.Listen("127.0.0.1:0", testOpts(1))
	if err != nil {
		t.Fatalf("failed to start server engine: %v", err)
	}
	defer serverEng.Close()

	clientEng, err := engine.New(testOpts(2))
	if err != nil {
		t.Fatalf("failed to start client engine: %v", err)
	}
	defer clientEng.Close()

	// Small catalog so the test stays quick; a few thousand bytes still
	// spans multiple chunks per stream.
	server := app.NewServer(serverEng, 4, 3000, 6000, rand.New(rand.NewSource(3)))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ServeOne() }()

	pairs := []app.Pair{{StreamID: 5, Object: 2}}
	objects, err := app.Fetch(clientEng, serverEng.LocalAddr(), pairs)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if err := <-serveErr; err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	want := server.Object(2)
	if !bytes.Equal(objects[5], want) {
		t.Errorf("object mismatch: got %d bytes, want %d bytes", len(objects[5]), len(want))
	}
}

// TestFetchManyObjects requests more streams than fit in one datagram
// (8 > MaxFramesPerPacket) and verifies every stream arrives fully and
// independently, whatever order frames were multiplexed in.
func TestFetchManyObjects(t *testing.T) {
	serverEng, err := engine.Listen("127.0.0.1:0", testOpts(4))
	if err != nil {
		t.Fatalf("failed to start server engine: %v", err)
	}
	defer serverEng.Close()

	clientEng, err := engine.New(testOpts(5))
	if err != nil {
		t.Fatalf("failed to start client engine: %v", err)
	}
	defer clientEng.Close()

	server := app.NewServer(serverEng, 10, 2000, 5000, rand.New(rand.NewSource(6)))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ServeOne() }()

	pairs := app.RandomPairs(8, 10, rand.New(rand.NewSource(7)))
	objects, err := app.Fetch(clientEng, serverEng.LocalAddr(), pairs)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if err := <-serveErr; err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	if len(objects) != len(pairs) {
		t.Fatalf("got %d streams, want %d", len(objects), len(pairs))
	}
	for _, p := range pairs {
		want := server.Object(p.Object)
		if !bytes.Equal(objects[p.StreamID], want) {
			t.Errorf("stream %d (object %d): got %d bytes, want %d bytes",
				p.StreamID, p.Object, len(objects[p.StreamID]), len(want))
		}
	}
}

// TestServerSurvivesJunkRequest verifies that a request that fails to parse
// is dropped and a later valid request is still served.
func TestServerSurvivesJunkRequest(t *testing.T) {
	serverEng, err := engine.Listen("127.0.0.1:0", testOpts(8))
	if err != nil {
		t.Fatalf("failed to start server engine: %v", err)
	}
	defer serverEng.Close()

	clientEng, err := engine.New(testOpts(9))
	if err != nil {
		t.Fatalf("failed to start client engine: %v", err)
	}
	defer clientEng.Close()

	server := app.NewServer(serverEng, 3, 1000, 2000, rand.New(rand.NewSource(10)))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ServeOne() }()

	// Junk on the request stream: parses as no valid pairs.
	if _, err := clientEng.Send(serverEng.LocalAddr(), map[uint32][]byte{
		app.RequestStreamID: []byte("not a request"),
	}); err != nil {
		t.Fatalf("junk send failed: %v", err)
	}

	pairs := []app.Pair{{StreamID: 1, Object: 0}}
	objects, err := app.Fetch(clientEng, serverEng.LocalAddr(), pairs)
	if err != nil {
		t.Fatalf("fetch after junk failed: %v", err)
	}

	if err := <-serveErr; err != nil {
		t.Fatalf("serve failed: %v", err)
	}

	if !bytes.Equal(objects[1], server.Object(0)) {
		t.Errorf("stream 1: got %d bytes, want %d bytes", len(objects[1]), len(server.Object(0)))
	}
}
