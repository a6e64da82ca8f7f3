package engine

import "math/rand"

// Selector decides which active streams are packed into the next datagram.
// The returned slice is also the frame emission order, so implementations
// control both fairness and within-datagram ordering. Implementations must
// not return more than max ids.
type Selector interface {
	Pick(streamIDs []uint32, max int) []uint32
}

// UniformSelector shuffles the candidates and keeps the first max of them:
// a uniform-random subset in uniform-random order. No stream is favored by
// registration position.
type UniformSelector struct {
	Rand *rand.Rand
}

// Pick implements Selector.
func (s UniformSelector) Pick(streamIDs []uint32, max int) []uint32 {
	ids := make([]uint32, len(streamIDs))
	copy(ids, streamIDs)
	s.Rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids
}
