package reliability

import (
	"time"

	"factorio-headless-client/internal/protoerr"
	"factorio-headless-client/internal/wire"
)

// Fragment piece wire format (spec §9 leaves the exact termination scheme
// unspecified and asks implementers to accept both a zero-length sentinel
// and an explicit size field in the first piece — we carry both signals
// explicitly in the piece payload so a decoder can recognize whichever one
// the peer used):
//
//	varshort pieceIndex
//	byte     terminator (0 or 1)
//	if terminator == 1:  (no further bytes; pieceIndex is one past the last data piece)
//	if pieceIndex == 0:  varint declaredTotal (0 means "unknown, rely on the sentinel")
//	remaining bytes:     fragment data

// TerminationMode records which of the two schemes spec §9 mentions was
// actually observed for a completed fragment group, so callers can log it.
type TerminationMode int

const (
	TerminationUnknown TerminationMode = iota
	TerminationSentinel
	TerminationDeclaredSize
)

type fragmentPiece struct {
	index      uint32
	terminator bool
	data       []byte
}

func decodeFragmentPiece(payload []byte) (fragmentPiece, uint32, error) {
	r := wire.NewReader(payload)
	idx, err := r.ReadVarShort()
	if err != nil {
		return fragmentPiece{}, 0, protoerr.Wrap(protoerr.BadFragment, "piece.index", err)
	}
	term, err := r.ReadBool()
	if err != nil {
		return fragmentPiece{}, 0, protoerr.Wrap(protoerr.BadFragment, "piece.terminator", err)
	}
	p := fragmentPiece{index: uint32(idx), terminator: term}
	if term {
		return p, 0, nil
	}
	var declaredTotal uint32
	if p.index == 0 {
		declaredTotal, err = r.ReadVarInt()
		if err != nil {
			return fragmentPiece{}, 0, protoerr.Wrap(protoerr.BadFragment, "piece.declaredTotal", err)
		}
	}
	p.data = payload[r.Pos():]
	return p, declaredTotal, nil
}

// EncodeFragmentPiece builds the wire payload for one outbound piece. Pass
// declaredTotal > 0 on index 0 to use the explicit-size scheme; pass 0 to
// rely on a trailing sentinel piece instead (sent separately with
// EncodeFragmentTerminator).
func EncodeFragmentPiece(index uint32, declaredTotal uint32, data []byte) []byte {
	w := wire.NewWriter()
	w.WriteVarShort(uint16(index))
	w.WriteBool(false)
	if index == 0 {
		w.WriteVarInt(declaredTotal)
	}
	w.WriteBytes(data)
	return w.Bytes()
}

// EncodeFragmentTerminator builds the zero-length sentinel piece that
// signals "index pieces [0, index) are the whole message".
func EncodeFragmentTerminator(index uint32) []byte {
	w := wire.NewWriter()
	w.WriteVarShort(uint16(index))
	w.WriteBool(true)
	return w.Bytes()
}

type fragmentGroup struct {
	pieces        map[uint32][]byte
	declaredTotal uint32 // 0 = not yet known
	sentinelIndex int64  // -1 = not yet seen
	created       time.Time
	mode          TerminationMode
}

func newFragmentGroup(now time.Time) *fragmentGroup {
	return &fragmentGroup{
		pieces:        make(map[uint32][]byte),
		sentinelIndex: -1,
		created:       now,
	}
}

func (g *fragmentGroup) total() (uint32, bool) {
	if g.declaredTotal > 0 {
		return g.declaredTotal, true
	}
	if g.sentinelIndex >= 0 {
		return uint32(g.sentinelIndex), true
	}
	return 0, false
}

func (g *fragmentGroup) complete() ([]byte, bool) {
	total, known := g.total()
	if !known {
		return nil, false
	}
	if uint32(len(g.pieces)) < total {
		return nil, false
	}
	out := make([]byte, 0, total*512)
	for i := uint32(0); i < total; i++ {
		piece, ok := g.pieces[i]
		if !ok {
			return nil, false
		}
		out = append(out, piece...)
	}
	return out, true
}

// Reassembler owns the fragment-reassembly arena keyed by fragment ID
// (spec §3 "Fragment group", §4.4, §9 design note: arenas keyed by ID,
// reaped on completion or TTL — no shared-ownership graph).
type Reassembler struct {
	ttl    time.Duration
	groups map[uint16]*fragmentGroup
}

func NewReassembler(ttl time.Duration) *Reassembler {
	return &Reassembler{ttl: ttl, groups: make(map[uint16]*fragmentGroup)}
}

// Add feeds one fragment piece into the group for fragID. It returns the
// reassembled logical payload and true once the group completes, along
// with which termination scheme resolved it.
func (a *Reassembler) Add(fragID uint16, raw []byte, now time.Time) ([]byte, bool, TerminationMode, error) {
	piece, declaredTotal, err := decodeFragmentPiece(raw)
	if err != nil {
		return nil, false, TerminationUnknown, err
	}

	g, ok := a.groups[fragID]
	if !ok {
		g = newFragmentGroup(now)
		a.groups[fragID] = g
	}

	if piece.terminator {
		g.sentinelIndex = int64(piece.index)
		g.mode = TerminationSentinel
	} else {
		if piece.index == 0 && declaredTotal > 0 {
			g.declaredTotal = declaredTotal
			g.mode = TerminationDeclaredSize
		}
		g.pieces[piece.index] = piece.data
	}

	payload, done := g.complete()
	if !done {
		return nil, false, TerminationUnknown, nil
	}
	mode := g.mode
	delete(a.groups, fragID)
	return payload, true, mode, nil
}

// ReapExpired drops fragment groups whose first piece arrived longer ago
// than the configured TTL (spec §3: "Destroyed when complete... or on
// timeout"). The age is measured from group creation; later pieces do not
// extend a group's lifetime.
func (a *Reassembler) ReapExpired(now time.Time) int {
	reaped := 0
	for id, g := range a.groups {
		if now.Sub(g.created) > a.ttl {
			delete(a.groups, id)
			reaped++
		}
	}
	return reaped
}
