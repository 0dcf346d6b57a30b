package audio

import (
	"github.com/pion/rtp"
)

// Depacketizer restores payload order for an RTP audio track. Packets may
// arrive reordered; payloads are released only in sequence. When a gap is
// not filled within the reorder window the missing packets are abandoned and
// counted as lost.
type Depacketizer struct {
	window  int
	started bool
	next    uint16
	pending map[uint16][]byte
	lost    int
}

// NewDepacketizer creates a depacketizer that holds at most window
// out-of-order packets before giving up on a gap. window must be positive.
func NewDepacketizer(window int) *Depacketizer {
	if window <= 0 {
		window = 16
	}
	return &Depacketizer{window: window, pending: make(map[uint16][]byte)}
}

// Push accepts one packet and returns the payloads that became deliverable,
// in sequence order. Late duplicates are dropped.
func (d *Depacketizer) Push(pkt *rtp.Packet) [][]byte {
	seq := pkt.SequenceNumber
	if !d.started {
		d.started = true
		d.next = seq
	}

	// Signed distance handles uint16 wraparound.
	delta := int16(seq - d.next)
	switch {
	case delta < 0:
		return nil
	case delta == 0:
		out := [][]byte{pkt.Payload}
		d.next++
		return append(out, d.drain()...)
	default:
		d.pending[seq] = pkt.Payload
		if len(d.pending) < d.window {
			return nil
		}
		// Window full: abandon the gap and resume at the oldest pending.
		oldest := seq
		for s := range d.pending {
			if int16(s-oldest) < 0 {
				oldest = s
			}
		}
		d.lost += int(int16(oldest - d.next))
		d.next = oldest
		return d.drain()
	}
}

// drain releases consecutively sequenced pending payloads.
func (d *Depacketizer) drain() [][]byte {
	var out [][]byte
	for {
		p, ok := d.pending[d.next]
		if !ok {
			return out
		}
		delete(d.pending, d.next)
		out = append(out, p)
		d.next++
	}
}

// Lost reports how many packets were abandoned so far.
func (d *Depacketizer) Lost() int { return d.lost }
