// Package reliability owns the two caches spec §4.4 assigns to the
// reliability layer: outbound reliable sends awaiting acknowledgement,
// and recently-seen inbound reliable IDs for dedup plus the confirmations
// owed back to the peer. It generalizes the teacher repo's
// Session.RecoveryQueue / Session.ACKQueue (source/protocol/raknet.go,
// HandleACK/HandleNACK) from RakNet's 24-bit sequence space to this
// protocol's 16-bit message IDs with the confirmation-bit convention of
// spec §4.2.
package reliability

import (
	"sort"
	"time"

	"factorio-headless-client/internal/protoerr"
)

// OutboundSend is one reliable packet waiting for acknowledgement.
type OutboundSend struct {
	MessageID uint16
	Packet    []byte
	FirstSent time.Time
	LastSent  time.Time
	Retries   int
}

// Outbound tracks reliable sends keyed by message ID, mirroring the
// teacher's RecoveryQueue map[uint32]*DataPacket but keyed on the
// message-ID space this protocol actually uses.
type Outbound struct {
	retransmitInterval time.Duration
	retryCap           int
	pending            map[uint16]*OutboundSend
}

func NewOutbound(retransmitInterval time.Duration, retryCap int) *Outbound {
	return &Outbound{
		retransmitInterval: retransmitInterval,
		retryCap:           retryCap,
		pending:            make(map[uint16]*OutboundSend),
	}
}

// Track records a freshly sent reliable packet.
func (o *Outbound) Track(id uint16, packet []byte, now time.Time) {
	o.pending[id] = &OutboundSend{MessageID: id, Packet: packet, FirstSent: now, LastSent: now}
}

// Ack removes every message ID present in an inbound confirmation list
// (spec §4.4: "On every inbound packet, remove IDs present in its
// confirmation list").
func (o *Outbound) Ack(ids []uint32) {
	for _, id := range ids {
		delete(o.pending, uint16(id))
	}
}

// Pending reports whether id is still awaiting acknowledgement.
func (o *Outbound) Pending(id uint16) bool {
	_, ok := o.pending[id]
	return ok
}

func (o *Outbound) Len() int { return len(o.pending) }

// DueForRetransmit returns the packets whose age exceeds the retransmit
// interval, each with its retry count incremented, in ascending message
// ID order for determinism. If any packet's retries exceed the cap, that
// send's message ID is returned alongside ReliableRetryExhausted and the
// caller should treat the session as fatally broken (spec §4.4, §7).
func (o *Outbound) DueForRetransmit(now time.Time) (resend [][]byte, err error) {
	ids := make([]uint16, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		send := o.pending[id]
		if now.Sub(send.LastSent) < o.retransmitInterval {
			continue
		}
		send.Retries++
		if send.Retries > o.retryCap {
			return nil, protoerr.New(protoerr.ReliableRetryExhausted, itoa(int(send.MessageID)))
		}
		send.LastSent = now
		resend = append(resend, send.Packet)
	}
	return resend, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Inbound deduplicates incoming reliable message IDs and tracks which
// confirmations are owed back to the peer, mirroring the teacher's
// ACKQueue dedup set (map[uint32]struct{}).
type Inbound struct {
	seen    map[uint16]struct{}
	owed    []uint32
	lastAck time.Time
}

func NewInbound() *Inbound {
	return &Inbound{seen: make(map[uint16]struct{})}
}

// Observe records a reliable message ID as seen and schedules its
// confirmation. It returns true if this is a duplicate (already seen),
// in which case the caller should drop the payload but still owes (and
// this call still schedules) the confirmation, so a retransmitted
// duplicate is acked again rather than left unconfirmed. Every call
// queues one confirmation, so an ID observed twice is confirmed twice.
func (in *Inbound) Observe(id uint16) (duplicate bool) {
	_, duplicate = in.seen[id]
	if !duplicate {
		in.seen[id] = struct{}{}
	}
	in.owed = append(in.owed, uint32(id))
	return duplicate
}

// Flush returns the confirmations accumulated since the last flush and
// clears the queue, for piggy-backing onto the next outbound packet.
func (in *Inbound) Flush() []uint32 {
	if len(in.owed) == 0 {
		return nil
	}
	out := in.owed
	in.owed = nil
	return out
}

// Owed reports whether any confirmation is waiting to be sent.
func (in *Inbound) Owed() bool { return len(in.owed) > 0 }
