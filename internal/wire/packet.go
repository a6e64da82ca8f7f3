// Package wire defines the datagram layout shared by both endpoints of a
// connection.
package wire

// Packet-level type markers.
const (
	ShortPacket uint8 = 3 // data packet, carries frames
	AckPacket   uint8 = 6 // acknowledgment packet, same value as AckFrame
)

// Frame-level type markers.
const (
	DataFrame uint32 = 5 // frame header is followed by Length payload bytes
	AckFrame  uint32 = 6 // no payload; Offset is the receiver's cursor
)

// HeaderSize is the fixed packet header size: Type(1) + Number(4).
const HeaderSize = 5

// FrameSize is the fixed frame header size:
// StreamID(4) + Type(4) + Offset(8) + Length(4).
const FrameSize = 20

// PacketHeader prefixes every datagram. Number is a per-connection,
// per-direction sequence counter and is never reused.
type PacketHeader struct {
	Type   uint8
	Number uint32
}

// Frame describes one stream's chunk inside a datagram.
//
// For a DataFrame, Offset is the position of the chunk within the stream and
// the header is immediately followed by Length payload bytes. For an
// AckFrame, Length is always 0 (no payload follows) and Offset carries the
// receiver's next-expected byte for that stream — not an echo of what was
// received.
type Frame struct {
	StreamID uint32
	Type     uint32
	Offset   uint64
	Length   uint32
}
