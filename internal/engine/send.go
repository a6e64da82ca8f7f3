package engine

import (
	"net"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/1ureka/miniquic/internal/util"
	"github.com/1ureka/miniquic/internal/wire"
)

// sendStream tracks one stream's progress through a single Send call.
type sendStream struct {
	id     uint32
	data   []byte
	chunk  int    // fixed per-transfer cap on bytes per frame
	cursor uint64 // peer-confirmed next byte

	start    time.Time
	finished time.Time
}

func (s *sendStream) remaining() uint64 {
	return uint64(len(s.data)) - s.cursor
}

// Send delivers every stream in streams to the peer at addr, multiplexing
// them over stop-and-wait datagrams until the peer has confirmed all bytes.
// It returns the total application bytes the peer accepted, excluding header
// and frame overhead.
//
// On retry exhaustion the error wraps ErrPeerUnresponsive; on a socket
// failure it wraps the transport error. In both cases the returned total
// covers the progress made before the failure.
func (e *Engine) Send(addr *net.UDPAddr, streams map[uint32][]byte) (uint64, error) {
	conn := e.lookupOrCreate(addr)

	// Register streams in id order so an injected chunk-size source is
	// consumed deterministically.
	ids := make([]uint32, 0, len(streams))
	for id := range streams {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	all := make([]*sendStream, 0, len(ids))
	for _, id := range ids {
		all = append(all, &sendStream{id: id, data: streams[id], chunk: e.opts.ChunkSizer()})
	}
	e.mu.Lock()
	for _, id := range ids {
		if _, ok := conn.streamBytesSent[id]; !ok {
			conn.streamBytesSent[id] = 0
		}
	}
	e.mu.Unlock()

	active := append([]*sendStream(nil), all...)

	var (
		sendErr error
		packets uint32
		started bool
	)

	for len(active) > 0 {
		selected := e.opts.Selector.Pick(activeIDs(active), e.opts.MaxFramesPerPacket)
		body, sentLens := packFrames(&active, selected)
		if len(active) == 0 {
			break
		}
		// A round whose selected streams all just completed still transmits
		// a header-only datagram; the remaining streams get their turn after
		// the (empty) ack comes back.

		hdr := wire.PacketHeader{Type: wire.ShortPacket, Number: e.nextPacketNumber(conn)}
		datagram := append(wire.EncodeHeader(hdr), body...)
		packets++

		if !started {
			started = true
			now := time.Now()
			for _, s := range all {
				s.start = now
			}
		}

		ackFrames, err := e.awaitAck(addr, datagram, hdr.Number)
		if err != nil {
			sendErr = err
			break
		}
		e.applyAcks(conn, active, ackFrames, sentLens)
	}

	var total uint64
	for _, s := range all {
		total += s.cursor
	}
	e.recordStats(addr, all, packets, total)
	return total, sendErr
}

// activeIDs lists the stream ids still in flight, in registration order.
func activeIDs(active []*sendStream) []uint32 {
	ids := make([]uint32, len(active))
	for i, s := range active {
		ids[i] = s.id
	}
	return ids
}

// packFrames builds the datagram body for one round. Each selected stream
// with bytes left contributes one data frame followed by its payload slice;
// selected streams with nothing left are retired from the active set. The
// returned map records the per-stream payload lengths sent this round.
func packFrames(active *[]*sendStream, selected []uint32) ([]byte, map[uint32]uint32) {
	var body []byte
	sentLens := make(map[uint32]uint32, len(selected))

	for _, id := range selected {
		s := findStream(*active, id)
		if s == nil {
			continue
		}

		rem := s.remaining()
		if rem == 0 {
			// Stream complete. The timestamp is reporting-only.
			s.finished = time.Now()
			*active = removeStream(*active, id)
			continue
		}

		n := uint64(s.chunk)
		if rem < n {
			n = rem
		}
		frame := wire.Frame{
			StreamID: s.id,
			Type:     wire.DataFrame,
			Offset:   s.cursor,
			Length:   uint32(n),
		}
		body = append(body, wire.EncodeFrame(frame)...)
		body = append(body, s.data[s.cursor:s.cursor+n]...)
		sentLens[s.id] = uint32(n)
	}
	return body, sentLens
}

func findStream(streams []*sendStream, id uint32) *sendStream {
	for _, s := range streams {
		if s.id == id {
			return s
		}
	}
	return nil
}

func removeStream(streams []*sendStream, id uint32) []*sendStream {
	for i, s := range streams {
		if s.id == id {
			return append(streams[:i], streams[i+1:]...)
		}
	}
	return streams
}

// ackState labels one attempt's outcome in the retransmission machine.
type ackState int

const (
	ackAccepted ackState = iota // matching ack decoded
	ackTimeout                  // no datagram within AckTimeout
	ackStale                    // datagram arrived but is not our ack
	ackFailed                   // transport error, not retryable
)

type ackResult struct {
	state  ackState
	frames []wire.Frame
	err    error
}

// awaitAck drives the stop-and-wait machine for one datagram: transmit the
// identical bytes, block for the matching acknowledgment, retry on timeout
// or on a stale/foreign ack, give up after MaxRetries attempts.
func (e *Engine) awaitAck(addr *net.UDPAddr, datagram []byte, number uint32) ([]wire.Frame, error) {
	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		res := e.exchange(addr, datagram, number)
		switch res.state {
		case ackAccepted:
			return res.frames, nil
		case ackTimeout:
			util.LogDebug("packet %d to %s: ack timeout (attempt %d/%d)",
				number, addr, attempt, e.opts.MaxRetries)
		case ackStale:
			util.LogDebug("packet %d to %s: stale or foreign ack, retrying (attempt %d/%d)",
				number, addr, attempt, e.opts.MaxRetries)
		case ackFailed:
			return nil, res.err
		}
	}

	util.LogWarning("no response from receiver (address: %s)", addr)
	return nil, errors.Wrapf(ErrPeerUnresponsive, "address %s", addr)
}

// exchange performs a single transmit-and-wait attempt. Any decode problem
// or header mismatch on the reply is classified as stale: the reply belongs
// to some other exchange and the caller should retry ours.
func (e *Engine) exchange(addr *net.UDPAddr, datagram []byte, number uint32) ackResult {
	if _, err := e.sock.WriteToUDP(datagram, addr); err != nil {
		return ackResult{state: ackFailed, err: errors.Wrapf(err, "send datagram to %s", addr)}
	}

	if err := e.sock.SetReadDeadline(time.Now().Add(e.opts.AckTimeout)); err != nil {
		return ackResult{state: ackFailed, err: errors.Wrap(err, "arm ack timeout")}
	}

	buf := make([]byte, e.opts.MaxReceiveBytes)
	n, _, err := e.sock.ReadFromUDP(buf)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return ackResult{state: ackTimeout}
		}
		return ackResult{state: ackFailed, err: errors.Wrapf(err, "await ack from %s", addr)}
	}

	hdr, err := wire.DecodeHeader(buf[:n])
	if err != nil {
		return ackResult{state: ackStale}
	}
	if hdr.Type != wire.AckPacket || hdr.Number != number {
		return ackResult{state: ackStale}
	}

	frames, err := parseAckFrames(buf[wire.HeaderSize:n])
	if err != nil {
		return ackResult{state: ackStale}
	}
	return ackResult{state: ackAccepted, frames: frames}
}

// parseAckFrames walks the ack body. The pointer advance includes
// frame.Length even though ack frames never carry payload, mirroring the
// data-frame walk so a nonzero length cannot desynchronize the scan.
func parseAckFrames(body []byte) ([]wire.Frame, error) {
	var frames []wire.Frame
	p := 0
	for len(body)-p >= wire.FrameSize {
		f, err := wire.DecodeFrame(body[p : p+wire.FrameSize])
		if err != nil {
			return nil, err
		}
		p += wire.FrameSize + int(f.Length)
		frames = append(frames, f)
	}
	return frames, nil
}

// applyAcks moves each acknowledged stream's cursor to the offset the peer
// reported, the peer's authoritative next-expected byte, which may confirm
// all, some, or none of the round's bytes. Streams already retired are left
// alone. An offset past the end of the stream cannot come from a correct
// peer and is ignored; the cursor never leaves [0, len(data)]. The
// per-connection sent counter advances by the length originally sent this
// round, for reporting.
func (e *Engine) applyAcks(conn *connection, active []*sendStream, frames []wire.Frame, sentLens map[uint32]uint32) {
	for _, f := range frames {
		if f.Type != wire.AckFrame {
			continue
		}
		s := findStream(active, f.StreamID)
		if s == nil {
			continue
		}
		if f.Offset > uint64(len(s.data)) {
			util.LogDebug("stream %d: ignoring ack offset %d beyond stream length %d",
				f.StreamID, f.Offset, len(s.data))
			continue
		}
		s.cursor = f.Offset

		e.mu.Lock()
		conn.streamBytesSent[f.StreamID] += uint64(sentLens[f.StreamID])
		e.mu.Unlock()
	}
}

// recordStats snapshots the transfer for LastStats.
func (e *Engine) recordStats(addr *net.UDPAddr, all []*sendStream, packets uint32, total uint64) {
	stats := &util.TransferStats{
		Peer:    addr.String(),
		Packets: packets,
		Bytes:   total,
		Streams: make([]util.StreamStat, 0, len(all)),
	}
	for _, s := range all {
		var d time.Duration
		if !s.start.IsZero() && !s.finished.IsZero() {
			d = s.finished.Sub(s.start)
		}
		if d > stats.Elapsed {
			stats.Elapsed = d
		}
		stats.Streams = append(stats.Streams, util.StreamStat{
			StreamID:  s.id,
			ChunkSize: s.chunk,
			Bytes:     s.cursor,
			Duration:  d,
		})
	}

	e.mu.Lock()
	e.lastStats = stats
	e.mu.Unlock()
}
