package engine

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/1ureka/miniquic/internal/util"
	"github.com/1ureka/miniquic/internal/wire"
)

// Receive blocks for exactly one inbound datagram, applies its frames to the
// sender's connection, and acknowledges it. It returns the sender's address
// and the in-order payloads accepted per stream.
//
// Acceptance is strictly in order: a frame whose offset is not the stream's
// recorded cursor — whether a gap or a duplicate — leaves the cursor
// untouched and is acknowledged with the unchanged cursor, telling the
// sender to resend from the last confirmed position. Nothing is buffered or
// reordered.
//
// maxBytes bounds how much frame payload this call is willing to hand back:
// once the running total of received frame bytes exceeds it, further
// payloads are dropped from the result map but their frames are still
// tracked and acknowledged. maxBytes <= 0 means the engine's configured
// receive buffer size.
//
// Datagrams that are not data packets produce no acknowledgment and an empty
// result map.
func (e *Engine) Receive(maxBytes int) (*net.UDPAddr, map[uint32][]byte, error) {
	if maxBytes <= 0 {
		maxBytes = e.opts.MaxReceiveBytes
	}

	// Send arms a read deadline for its ack waits; clear it so this read
	// blocks indefinitely.
	if err := e.sock.SetReadDeadline(time.Time{}); err != nil {
		return nil, nil, errors.Wrap(err, "clear read deadline")
	}

	buf := make([]byte, e.opts.MaxReceiveBytes)
	n, sender, err := e.sock.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "receive datagram")
	}
	data := buf[:n]

	hdr, err := wire.DecodeHeader(data)
	if err != nil {
		return sender, nil, err
	}

	result := make(map[uint32][]byte)
	if hdr.Type != wire.ShortPacket {
		return sender, result, nil
	}

	conn := e.lookupOrCreate(sender)
	e.mu.Lock()
	conn.receivedPackets++
	e.mu.Unlock()

	var ackBody []byte
	total := 0
	p := wire.HeaderSize

	for n-p >= wire.FrameSize {
		frame, err := wire.DecodeFrame(data[p : p+wire.FrameSize])
		if err != nil {
			return sender, result, err
		}
		p += wire.FrameSize

		// The declared length indexes into the datagram; never trust it past
		// the buffer.
		if int(frame.Length) > n-p {
			return sender, result, errors.Wrapf(wire.ErrMalformed,
				"frame on stream %d declares %d payload bytes, %d remain",
				frame.StreamID, frame.Length, n-p)
		}
		payload := data[p : p+int(frame.Length)]
		p += int(frame.Length)
		total += int(frame.Length)

		e.mu.Lock()
		cursor := conn.streamBytesReceived[frame.StreamID]
		accepted := frame.Offset == cursor
		if accepted {
			cursor += uint64(frame.Length)
			conn.streamBytesReceived[frame.StreamID] = cursor
		}
		e.mu.Unlock()

		if accepted {
			if total <= maxBytes {
				result[frame.StreamID] = append(result[frame.StreamID], payload...)
			}
		} else {
			util.LogDebug("stream %d from %s: offset %d does not match cursor %d, rejecting",
				frame.StreamID, sender, frame.Offset, cursor)
		}

		// The ack's offset is the (possibly advanced) cursor; ack frames
		// never carry payload, so Length stays 0.
		ackBody = append(ackBody, wire.EncodeFrame(wire.Frame{
			StreamID: frame.StreamID,
			Type:     wire.AckFrame,
			Offset:   cursor,
		})...)
	}

	ackHdr := wire.PacketHeader{Type: wire.AckPacket, Number: hdr.Number}
	e.mu.Lock()
	conn.sentPackets++
	e.mu.Unlock()

	if _, err := e.sock.WriteToUDP(append(wire.EncodeHeader(ackHdr), ackBody...), sender); err != nil {
		return sender, result, errors.Wrapf(err, "send ack to %s", sender)
	}
	return sender, result, nil
}
