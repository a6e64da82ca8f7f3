package engine

import "github.com/pkg/errors"

// ErrPeerUnresponsive reports that the retransmission budget for one
// datagram was exhausted without a matching acknowledgment. Send surfaces it
// wrapped with the peer address; match with errors.Is. The total returned
// alongside it covers the progress made before the failure.
var ErrPeerUnresponsive = errors.New("peer unresponsive")
