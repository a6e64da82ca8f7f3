package util

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
)

// StreamStat describes the outcome of one stream within a transfer.
type StreamStat struct {
	StreamID  uint32
	ChunkSize int           // per-frame cap drawn for this transfer
	Bytes     uint64        // bytes the peer confirmed
	Duration  time.Duration // first transmit to peer confirmation; 0 if incomplete
}

// TransferStats aggregates one send operation for reporting. It is filled by
// the engine after the transfer settles and never feeds back into protocol
// decisions.
type TransferStats struct {
	Peer    string
	Streams []StreamStat
	Packets uint32        // datagrams assembled during the transfer
	Bytes   uint64        // total confirmed application bytes
	Elapsed time.Duration // longest single-stream duration
}

// Pace returns b formatted as a human-readable rate over d, or "-" when the
// duration is unknown.
func Pace(b uint64, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return fmt.Sprintf("%s/s", formatBytes(float64(b)/d.Seconds()))
}

// Render prints the transfer report to stdout. Transfers with no streams
// (or nothing delivered) print nothing.
func (t *TransferStats) Render() {
	if t == nil || len(t.Streams) == 0 || t.Bytes == 0 {
		return
	}

	data := pterm.TableData{{"Stream", "Chunk size", "Delivered", "Pace"}}
	for _, s := range t.Streams {
		data = append(data, []string{
			fmt.Sprintf("%d", s.StreamID),
			fmt.Sprintf("%d B", s.ChunkSize),
			formatBytes(float64(s.Bytes)),
			Pace(s.Bytes, s.Duration),
		})
	}

	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		LogWarning("failed to render transfer report: %v", err)
		return
	}

	LogInfo("peer %s: %s in %d packets, %s",
		t.Peer, formatBytes(float64(t.Bytes)), t.Packets, Pace(t.Bytes, t.Elapsed))
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}
