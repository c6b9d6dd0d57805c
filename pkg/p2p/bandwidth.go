package p2p

import (
	"sync"

	libp2pmetrics "github.com/libp2p/go-libp2p-core/metrics"
	"github.com/libp2p/go-libp2p-core/peer"
)

// BandwidthReporter reports the total traffic exchanged with each peer.
// *metrics.BandwidthCounter of go-libp2p-core implements it.
type BandwidthReporter interface {
	GetBandwidthByPeer() map[peer.ID]libp2pmetrics.Stats
}

// BandwidthSampler turns the cumulative traffic totals of a BandwidthReporter
// into BytesTransferred events carrying the traffic since the previous sample.
type BandwidthSampler struct {
	sync.Mutex

	reporter   BandwidthReporter
	lastSample map[peer.ID]libp2pmetrics.Stats
}

// NewBandwidthSampler creates a new BandwidthSampler.
func NewBandwidthSampler(reporter BandwidthReporter) *BandwidthSampler {
	return &BandwidthSampler{
		reporter:   reporter,
		lastSample: make(map[peer.ID]libp2pmetrics.Stats),
	}
}

// Sample returns the traffic of every peer which exchanged data since the last call.
func (s *BandwidthSampler) Sample() []BytesTransferred {
	s.Lock()
	defer s.Unlock()

	current := s.reporter.GetBandwidthByPeer()
	result := make([]BytesTransferred, 0, len(current))

	for peerID, stats := range current {
		last := s.lastSample[peerID]

		transferred := BytesTransferred{
			Peer:     peerID,
			Sent:     delta(last.TotalOut, stats.TotalOut),
			Received: delta(last.TotalIn, stats.TotalIn),
		}
		if transferred.Sent > 0 || transferred.Received > 0 {
			result = append(result, transferred)
		}
	}

	// peers which vanished from the reporter start from zero again
	s.lastSample = current

	return result
}

// a counter which went backwards was reset, so its current value is the delta.
func delta(last int64, current int64) uint64 {
	if current < 0 {
		return 0
	}
	if current < last {
		return uint64(current)
	}
	return uint64(current - last)
}
