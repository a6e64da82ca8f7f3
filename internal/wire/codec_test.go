package wire

import (
	"errors"
	"testing"
)

// TestHeaderRoundTrip verifies that encoding and decoding are inverse
// operations for both packet types across boundary counter values.
func TestHeaderRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		hdr  PacketHeader
	}{
		{"data packet, first number", PacketHeader{Type: ShortPacket, Number: 0}},
		{"data packet, mid-range number", PacketHeader{Type: ShortPacket, Number: 12345}},
		{"ack packet", PacketHeader{Type: AckPacket, Number: 42}},
		{"max number", PacketHeader{Type: ShortPacket, Number: 0xFFFFFFFF}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeHeader(tc.hdr)
			if len(encoded) != HeaderSize {
				t.Fatalf("encoded header size = %d, want %d", len(encoded), HeaderSize)
			}

			decoded, err := DecodeHeader(encoded)
			if err != nil {
				t.Fatalf("DecodeHeader failed: %v", err)
			}
			if decoded != tc.hdr {
				t.Errorf("header mismatch: got %+v, want %+v", decoded, tc.hdr)
			}
		})
	}
}

// TestFrameRoundTrip verifies frame headers survive encode/decode with
// boundary values in every field.
func TestFrameRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		frame Frame
	}{
		{"data frame at origin", Frame{StreamID: 1, Type: DataFrame, Offset: 0, Length: 1000}},
		{"ack frame", Frame{StreamID: 7, Type: AckFrame, Offset: 4096, Length: 0}},
		{"max stream id", Frame{StreamID: 0xFFFFFFFF, Type: DataFrame, Offset: 10, Length: 20}},
		{"max offset", Frame{StreamID: 3, Type: DataFrame, Offset: 0xFFFFFFFFFFFFFFFF, Length: 1}},
		{"max length", Frame{StreamID: 3, Type: DataFrame, Offset: 0, Length: 0xFFFFFFFF}},
		{"all zero", Frame{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeFrame(tc.frame)
			if len(encoded) != FrameSize {
				t.Fatalf("encoded frame size = %d, want %d", len(encoded), FrameSize)
			}

			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if decoded != tc.frame {
				t.Errorf("frame mismatch: got %+v, want %+v", decoded, tc.frame)
			}
		})
	}
}

// TestDecodeHeaderTooShort verifies that DecodeHeader rejects buffers
// shorter than HeaderSize without panicking.
func TestDecodeHeaderTooShort(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"nil", nil},
		{"1 byte", []byte{0x03}},
		{"4 bytes (one less than HeaderSize)", make([]byte, 4)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeHeader(tc.data)
			if err == nil {
				t.Fatal("expected error for short header, got nil")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

// TestDecodeFrameTooShort verifies that DecodeFrame rejects buffers shorter
// than FrameSize without panicking.
func TestDecodeFrameTooShort(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"header-sized buffer", make([]byte, HeaderSize)},
		{"19 bytes (one less than FrameSize)", make([]byte, 19)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFrame(tc.data)
			if err == nil {
				t.Fatal("expected error for short frame, got nil")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

// TestDecodeFrameIgnoresTrailingBytes verifies that DecodeFrame reads
// exactly FrameSize bytes, leaving any payload untouched.
func TestDecodeFrameIgnoresTrailingBytes(t *testing.T) {
	frame := Frame{StreamID: 9, Type: DataFrame, Offset: 100, Length: 5}
	buf := append(EncodeFrame(frame), []byte("hello")...)

	decoded, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if decoded != frame {
		t.Errorf("frame mismatch: got %+v, want %+v", decoded, frame)
	}
}
