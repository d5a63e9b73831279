// Package heartbeat implements the per-tick I/O of spec §4.5: sending
// client heartbeats carrying pending input actions, parsing server
// heartbeats, and surfacing confirmed ticks and checksums. It runs only
// in the InGame phase (spec §4.3).
package heartbeat

import (
	"factorio-headless-client/internal/framing"
	"factorio-headless-client/internal/protoerr"
	"factorio-headless-client/internal/wire"
)

const (
	flagSingleTick    byte = 0x06
	flagMultiTick     byte = 0x02
	flagHasPlayerState byte = 0x10
)

var confirmationMarker = [3]byte{0x02, 0x52, 0x00}

const heartbeatMarker uint16 = 0x001C

// ActionKind enumerates the input action kinds from spec §3.
type ActionKind byte

const (
	ActionStartWalking ActionKind = iota
	ActionStopWalking
	ActionBeginMining
	ActionStopMining
	ActionCraft
	ActionChangeShootingState
)

// InputAction is immutable once serialized into an outbound heartbeat
// (spec §3).
type InputAction struct {
	Kind     ActionKind
	Tick     uint32
	PlayerID uint16
	Payload  []byte
}

func encodeAction(w *wire.Writer, a InputAction) {
	w.WriteByte(byte(a.Kind))
	w.WriteUint32(a.Tick)
	w.WriteUint16(a.PlayerID)
	w.WriteUint16(uint16(len(a.Payload)))
	w.WriteBytes(a.Payload)
}

func decodeAction(r *wire.Reader) (InputAction, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return InputAction{}, err
	}
	tick, err := r.ReadUint32()
	if err != nil {
		return InputAction{}, err
	}
	playerID, err := r.ReadUint16()
	if err != nil {
		return InputAction{}, err
	}
	n, err := r.ReadUint16()
	if err != nil {
		return InputAction{}, err
	}
	payload, err := r.ReadBytes(int(n))
	if err != nil {
		return InputAction{}, err
	}
	return InputAction{Kind: ActionKind(kind), Tick: tick, PlayerID: playerID, Payload: payload}, nil
}

// TickConfirmation is one server statement that a tick executed, with its
// post-tick checksum (spec §3, §4.5).
type TickConfirmation struct {
	Tick     uint32
	Checksum uint32
}

func encodeConfirmation(w *wire.Writer, c TickConfirmation) {
	w.WriteBytes(confirmationMarker[:])
	w.WriteUint32(c.Checksum)
	w.WriteUint32(c.Tick)
	// padding zeros until the next record or packet end (spec §3); we pad
	// a fixed 2 bytes to keep record size constant and documented.
	w.WriteUint16(0)
}

const confirmationRecordSize = 3 + 4 + 4 + 2

func decodeConfirmation(r *wire.Reader) (TickConfirmation, error) {
	marker, err := r.ReadBytes(3)
	if err != nil {
		return TickConfirmation{}, err
	}
	if marker[0] != confirmationMarker[0] || marker[1] != confirmationMarker[1] || marker[2] != confirmationMarker[2] {
		return TickConfirmation{}, protoerr.New(protoerr.BadMagic, "heartbeat.confirmationMarker")
	}
	checksum, err := r.ReadUint32()
	if err != nil {
		return TickConfirmation{}, err
	}
	tick, err := r.ReadUint32()
	if err != nil {
		return TickConfirmation{}, err
	}
	if _, err := r.ReadUint16(); err != nil {
		return TickConfirmation{}, err
	}
	return TickConfirmation{Tick: tick, Checksum: checksum}, nil
}

// ClientHeartbeat is the message the client sends once per local tick
// slice (spec §4.5).
type ClientHeartbeat struct {
	Sequence       uint16
	MultiTick      bool
	HasPlayerState bool
	Confirmations  []TickConfirmation
	PlayerState    []byte
	Actions        []InputAction
	Flush          bool // sets the reliable bit for a rare flush, spec §4.5
}

// Encode serializes a client heartbeat into a framed packet.
func Encode(hb ClientHeartbeat) []byte {
	w := wire.NewWriter()

	flags := flagSingleTick
	if hb.MultiTick {
		flags = flagMultiTick
	}
	if hb.HasPlayerState {
		flags |= flagHasPlayerState
	}
	w.WriteByte(flags)
	w.WriteUint16(hb.Sequence)
	w.WriteUint16(heartbeatMarker)

	if hb.MultiTick {
		w.WriteVarInt(uint32(len(hb.Confirmations)))
		for _, c := range hb.Confirmations {
			encodeConfirmation(w, c)
		}
	}

	if hb.HasPlayerState {
		w.WriteUint16(uint16(len(hb.PlayerState)))
		w.WriteBytes(hb.PlayerState)
	}

	w.WriteVarInt(uint32(len(hb.Actions)))
	for _, a := range hb.Actions {
		encodeAction(w, a)
	}

	h := &framing.Header{Type: framing.MsgHeartbeat, Reliable: hb.Flush, Payload: w.Bytes()}
	return framing.Emit(h)
}

// ServerHeartbeat is the message parsed out of the server's mirrored
// heartbeat structure (spec §4.5).
type ServerHeartbeat struct {
	Sequence       uint16
	MultiTick      bool
	HasPlayerState bool
	Confirmations  []TickConfirmation
	PlayerState    []byte
}

// Decode parses a server heartbeat payload (the framing layer has
// already stripped the outer packet header).
func Decode(payload []byte) (ServerHeartbeat, error) {
	r := wire.NewReader(payload)

	flags, err := r.ReadByte()
	if err != nil {
		return ServerHeartbeat{}, protoerr.Wrap(protoerr.ShortRead, "heartbeat.flags", err)
	}
	sb := ServerHeartbeat{
		MultiTick:      flags&flagSingleTick == flagMultiTick,
		HasPlayerState: flags&flagHasPlayerState != 0,
	}

	seq, err := r.ReadUint16()
	if err != nil {
		return ServerHeartbeat{}, protoerr.Wrap(protoerr.ShortRead, "heartbeat.sequence", err)
	}
	sb.Sequence = seq

	marker, err := r.ReadUint16()
	if err != nil {
		return ServerHeartbeat{}, protoerr.Wrap(protoerr.ShortRead, "heartbeat.marker", err)
	}
	if marker != heartbeatMarker {
		return ServerHeartbeat{}, protoerr.New(protoerr.BadMagic, "heartbeat.marker")
	}

	if sb.MultiTick {
		count, err := r.ReadVarInt()
		if err != nil {
			return ServerHeartbeat{}, protoerr.Wrap(protoerr.ShortRead, "heartbeat.confirmCount", err)
		}
		sb.Confirmations = make([]TickConfirmation, 0, count)
		for i := uint32(0); i < count; i++ {
			c, err := decodeConfirmation(r)
			if err != nil {
				return ServerHeartbeat{}, protoerr.Wrap(protoerr.ShortRead, "heartbeat.confirmation", err)
			}
			sb.Confirmations = append(sb.Confirmations, c)
		}
	}

	if sb.HasPlayerState {
		n, err := r.ReadUint16()
		if err != nil {
			return ServerHeartbeat{}, protoerr.Wrap(protoerr.ShortRead, "heartbeat.playerStateLen", err)
		}
		state, err := r.ReadBytes(int(n))
		if err != nil {
			return ServerHeartbeat{}, protoerr.Wrap(protoerr.ShortRead, "heartbeat.playerState", err)
		}
		sb.PlayerState = state
	}

	return sb, nil
}

// SequenceWindow is half of the 16-bit sequence space, the range that
// SequenceGate's signed 16-bit comparison treats as "newer". SequenceGate
// does not reference this constant; it rejects every sequence that is not
// strictly newer, however close behind the highest seen it is.
const SequenceWindow = 1 << 15

// SequenceGate tracks the highest heartbeat sequence seen and rejects
// stale ones, wrapping correctly at 2^16 (spec §4.5, §8). "More than one
// window behind" is only meaningful once folded into the half-window
// signed comparison below, since raw 16-bit distance can't otherwise
// distinguish "behind" from "ahead after wraparound": a sequence is
// accepted iff it is strictly newer than the highest seen in that
// modular sense.
type SequenceGate struct {
	highest    uint16
	hasHighest bool
}

// Accept reports whether seq should be processed, and if so, updates the
// high-water mark.
func (g *SequenceGate) Accept(seq uint16) bool {
	if !g.hasHighest {
		g.highest = seq
		g.hasHighest = true
		return true
	}
	delta := int16(seq - g.highest)
	if delta <= 0 {
		return false
	}
	g.highest = seq
	return true
}
