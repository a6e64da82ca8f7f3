package engine

import "net"

// connection tracks the per-peer protocol state: one packet counter per
// direction and one byte cursor per stream per direction. All fields are
// guarded by the engine mutex; nothing outside the engine ever holds one.
type connection struct {
	addr                *net.UDPAddr
	sentPackets         uint32
	receivedPackets     uint32
	streamBytesSent     map[uint32]uint64
	streamBytesReceived map[uint32]uint64
}

// lookupOrCreate returns the connection for addr, creating it on first
// contact. This is the only place connections are constructed.
func (e *Engine) lookupOrCreate(addr *net.UDPAddr) *connection {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := addr.String()
	if c, ok := e.conns[key]; ok {
		return c
	}
	c := &connection{
		addr:                addr,
		streamBytesSent:     make(map[uint32]uint64),
		streamBytesReceived: make(map[uint32]uint64),
	}
	e.conns[key] = c
	return c
}

// nextPacketNumber hands out the connection's next outgoing packet number.
// Numbers are monotonically increasing and never reused.
func (e *Engine) nextPacketNumber(c *connection) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := c.sentPackets
	c.sentPackets++
	return n
}

// ConnectionInfo is a point-in-time copy of one peer's counters, for status
// reporting.
type ConnectionInfo struct {
	Peer                string
	SentPackets         uint32
	ReceivedPackets     uint32
	StreamBytesSent     map[uint32]uint64
	StreamBytesReceived map[uint32]uint64
}

// ConnectionInfo reports the counters recorded for addr. The second return
// value is false if the peer has never been seen.
func (e *Engine) ConnectionInfo(addr *net.UDPAddr) (ConnectionInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conns[addr.String()]
	if !ok {
		return ConnectionInfo{}, false
	}

	info := ConnectionInfo{
		Peer:                c.addr.String(),
		SentPackets:         c.sentPackets,
		ReceivedPackets:     c.receivedPackets,
		StreamBytesSent:     make(map[uint32]uint64, len(c.streamBytesSent)),
		StreamBytesReceived: make(map[uint32]uint64, len(c.streamBytesReceived)),
	}
	for id, n := range c.streamBytesSent {
		info.StreamBytesSent[id] = n
	}
	for id, n := range c.streamBytesReceived {
		info.StreamBytesReceived[id] = n
	}
	return info, true
}
