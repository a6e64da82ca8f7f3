package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrMalformed reports a buffer too short to hold the structure being
// decoded. Frame headers and lengths come straight off the network, so every
// decode path checks bounds before reading.
var ErrMalformed = errors.New("malformed wire data")

// EncodeHeader serializes a packet header into its 5-byte big-endian form.
func EncodeHeader(h PacketHeader) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Type
	binary.BigEndian.PutUint32(buf[1:5], h.Number)
	return buf
}

// DecodeHeader deserializes a packet header from the start of data.
func DecodeHeader(data []byte) (PacketHeader, error) {
	if len(data) < HeaderSize {
		return PacketHeader{}, errors.Wrapf(ErrMalformed,
			"header too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}
	return PacketHeader{
		Type:   data[0],
		Number: binary.BigEndian.Uint32(data[1:5]),
	}, nil
}

// EncodeFrame serializes a frame header into its 20-byte big-endian form.
// Payload bytes, if any, are appended by the caller.
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, FrameSize)
	binary.BigEndian.PutUint32(buf[0:4], f.StreamID)
	binary.BigEndian.PutUint32(buf[4:8], f.Type)
	binary.BigEndian.PutUint64(buf[8:16], f.Offset)
	binary.BigEndian.PutUint32(buf[16:20], f.Length)
	return buf
}

// DecodeFrame deserializes a frame header from the start of data. It does
// not touch the payload that may follow.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < FrameSize {
		return Frame{}, errors.Wrapf(ErrMalformed,
			"frame too short: %d bytes (need at least %d)", len(data), FrameSize)
	}
	return Frame{
		StreamID: binary.BigEndian.Uint32(data[0:4]),
		Type:     binary.BigEndian.Uint32(data[4:8]),
		Offset:   binary.BigEndian.Uint64(data[8:16]),
		Length:   binary.BigEndian.Uint32(data[16:20]),
	}, nil
}
