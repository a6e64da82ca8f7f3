// Package engine implements the reliable stream transport over a single UDP
// socket: multiplexed data frames going out under a stop-and-wait
// retransmission loop, strict in-order acceptance with go-back-N
// acknowledgments coming back.
package engine

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/1ureka/miniquic/internal/util"
)

// Protocol defaults. MaxFramesPerPacket and MaxRetries are knobs because
// deployed peers disagree on them (6 vs 7 frames per packet; capped retry
// vs abort on first timeout, which is MaxRetries=1 here).
const (
	DefaultMaxFramesPerPacket = 6
	DefaultMaxRetries         = 4
	DefaultAckTimeout         = 2 * time.Second
	DefaultMinChunkSize       = 1000
	DefaultMaxChunkSize       = 2000
	DefaultMaxReceiveBytes    = 65536
)

// Options tunes one Engine instance. The zero value selects all defaults.
type Options struct {
	MaxFramesPerPacket int
	MaxRetries         int
	AckTimeout         time.Duration
	MinChunkSize       int // lower bound of the per-stream chunk size draw
	MaxChunkSize       int // upper bound of the per-stream chunk size draw
	MaxReceiveBytes    int // datagram read buffer size

	// Selector picks which active streams go into the next datagram.
	// Defaults to a uniform-random subset.
	Selector Selector

	// ChunkSizer yields the fixed per-transfer chunk size for each stream as
	// it is registered. Defaults to a uniform draw in
	// [MinChunkSize, MaxChunkSize]. Inject a deterministic sequence to make
	// transfers reproducible.
	ChunkSizer func() int

	// Rand seeds the default Selector and ChunkSizer. Defaults to a
	// time-seeded source.
	Rand *rand.Rand
}

// withDefaults resolves every unset field.
func (o Options) withDefaults() Options {
	if o.MaxFramesPerPacket <= 0 {
		o.MaxFramesPerPacket = DefaultMaxFramesPerPacket
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = DefaultAckTimeout
	}
	if o.MinChunkSize <= 0 {
		o.MinChunkSize = DefaultMinChunkSize
	}
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.MaxChunkSize < o.MinChunkSize {
		o.MaxChunkSize = o.MinChunkSize
	}
	if o.MaxReceiveBytes <= 0 {
		o.MaxReceiveBytes = DefaultMaxReceiveBytes
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.Selector == nil {
		o.Selector = UniformSelector{Rand: o.Rand}
	}
	if o.ChunkSizer == nil {
		rng, lo, span := o.Rand, o.MinChunkSize, o.MaxChunkSize-o.MinChunkSize+1
		o.ChunkSizer = func() int { return lo + rng.Intn(span) }
	}
	return o
}

// Engine owns one UDP socket and the connection table for every peer seen
// through it. Calls are synchronous: Send keeps a single datagram in flight
// and Receive blocks for exactly one datagram. An Engine shared across
// goroutines serializes registry and counter access behind mu, but the
// socket itself still assumes one caller at a time.
type Engine struct {
	opts Options
	sock *net.UDPConn

	mu    sync.Mutex // guards conns, every connection's counters, and lastStats
	conns map[string]*connection

	lastStats *util.TransferStats
}

// New creates an engine on an ephemeral local port, for client roles.
func New(opts Options) (*Engine, error) {
	return listen(nil, opts)
}

// Listen creates an engine bound to addr, for server roles.
func Listen(addr string, opts Options) (*Engine, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", addr)
	}
	return listen(udpAddr, opts)
}

func listen(addr *net.UDPAddr, opts Options) (*Engine, error) {
	sock, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "open udp socket")
	}
	return &Engine{
		opts:  opts.withDefaults(),
		sock:  sock,
		conns: make(map[string]*connection),
	}, nil
}

// LocalAddr returns the address the engine's socket is bound to.
func (e *Engine) LocalAddr() *net.UDPAddr {
	return e.sock.LocalAddr().(*net.UDPAddr)
}

// Close releases the socket. The engine must not be used afterwards.
func (e *Engine) Close() error {
	return errors.Wrap(e.sock.Close(), "close udp socket")
}

// LastStats returns the report of the most recent Send call, or nil if the
// engine has not sent yet.
func (e *Engine) LastStats() *util.TransferStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}
