// Package handshake implements the connection FSM of spec §4.3: a tagged
// variant over phases carrying phase-specific payload (the buffered salt,
// the assigned player ID, the announced total block count), not a base-class
// hierarchy (spec §9). Transitions are total functions from
// (phase, message) to (phase', outbound), grounded on the teacher's
// STATE_UNCONNECTED..STATE_IN_GAME session states in
// source/protocol/raknet.go, generalized from RakNet's connect/accept
// handshake to this protocol's salted-credential handshake.
package handshake

import (
	"factorio-headless-client/internal/framing"
	"factorio-headless-client/internal/protoerr"
	"factorio-headless-client/internal/wire"
)

// Phase is one state of the connection FSM.
type Phase int

const (
	Disconnected Phase = iota
	AwaitingReply
	AwaitingAcceptDeny
	MapDownload
	InGame
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "Disconnected"
	case AwaitingReply:
		return "AwaitingReply"
	case AwaitingAcceptDeny:
		return "AwaitingAcceptDeny"
	case MapDownload:
		return "MapDownload"
	case InGame:
		return "InGame"
	default:
		return "Unknown"
	}
}

// DenyReason enumerates why a ConnectionAcceptOrDeny carried a deny.
type DenyReason byte

const (
	DenyUnknown        DenyReason = 0
	DenyWrongVersion   DenyReason = 1
	DenyServerFull     DenyReason = 2
	DenyAuthFailed     DenyReason = 3
)

// Credentials are the username/token pair sent in ConnectionRequestReplyConfirm.
type Credentials struct {
	Username string
	Token    string
}

// Machine drives the phase transitions and remembers per-phase payload.
type Machine struct {
	phase       Phase
	creds       Credentials
	salt        uint32
	playerID    uint16
	denyReason  DenyReason
	totalBlocks uint32 // 0 = not yet announced by ConnectionAcceptOrDeny
}

func New(creds Credentials) *Machine {
	return &Machine{phase: Disconnected, creds: creds}
}

func (m *Machine) Phase() Phase          { return m.phase }
func (m *Machine) PlayerID() uint16      { return m.playerID }
func (m *Machine) DenyReason() DenyReason { return m.denyReason }

// AnnouncedTotalBlocks returns the block count from ConnectionAcceptOrDeny,
// if any (spec §9: transfer-total ambiguity, prefer the earlier source).
func (m *Machine) AnnouncedTotalBlocks() (uint32, bool) {
	return m.totalBlocks, m.totalBlocks > 0
}

// Begin starts the handshake, emitting the ConnectionRequest packet.
func (m *Machine) Begin() ([]byte, error) {
	if m.phase != Disconnected {
		return nil, protoerr.New(protoerr.UnknownMessageType, "handshake.begin: wrong phase "+m.phase.String())
	}
	m.phase = AwaitingReply
	h := &framing.Header{Type: framing.MsgConnectionRequest, Reliable: true}
	return framing.Emit(h), nil
}

// HandleConnectionRequestReply consumes the server's salt and replies
// with the credential-bearing confirm message.
func (m *Machine) HandleConnectionRequestReply(payload []byte) ([]byte, error) {
	if m.phase != AwaitingReply {
		return nil, protoerr.New(protoerr.UnknownMessageType, "handshake.reply: wrong phase "+m.phase.String())
	}
	r := wire.NewReader(payload)
	salt, err := r.ReadUint32()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ShortRead, "handshake.salt", err)
	}
	m.salt = salt
	m.phase = AwaitingAcceptDeny

	w := wire.NewWriter()
	w.WriteUint32(m.salt)
	w.WriteString8(m.creds.Username)
	w.WriteString8(m.creds.Token)
	h := &framing.Header{Type: framing.MsgConnectionRequestReplyConfirm, Reliable: true, Payload: w.Bytes()}
	return framing.Emit(h), nil
}

// HandleAcceptOrDeny consumes the accept/deny decision. accepted=false
// returns HandshakeDenied; the caller must close the session.
//
// Payload layout: byte accepted, uint16 playerID (if accepted) or byte
// reason (if denied), varint totalBlocks (0 if not announced here).
func (m *Machine) HandleAcceptOrDeny(payload []byte) error {
	if m.phase != AwaitingAcceptDeny {
		return protoerr.New(protoerr.UnknownMessageType, "handshake.acceptDeny: wrong phase "+m.phase.String())
	}
	r := wire.NewReader(payload)
	accepted, err := r.ReadBool()
	if err != nil {
		return protoerr.Wrap(protoerr.ShortRead, "handshake.accepted", err)
	}
	if !accepted {
		reason, err := r.ReadByte()
		if err != nil {
			return protoerr.Wrap(protoerr.ShortRead, "handshake.denyReason", err)
		}
		m.denyReason = DenyReason(reason)
		m.phase = Disconnected
		return protoerr.New(protoerr.HandshakeDenied, denyReasonName(m.denyReason))
	}
	playerID, err := r.ReadUint16()
	if err != nil {
		return protoerr.Wrap(protoerr.ShortRead, "handshake.playerID", err)
	}
	m.playerID = playerID
	if r.Remaining() > 0 {
		total, err := r.ReadVarInt()
		if err == nil {
			m.totalBlocks = total
		}
	}
	m.phase = MapDownload
	return nil
}

// EnterInGame transitions MapDownload → InGame once the map archive is
// complete (spec §4.3).
func (m *Machine) EnterInGame() error {
	if m.phase != MapDownload {
		return protoerr.New(protoerr.UnknownMessageType, "handshake.enterInGame: wrong phase "+m.phase.String())
	}
	m.phase = InGame
	return nil
}

// Abort forces the FSM to Disconnected, e.g. on HandshakeTimeout.
func (m *Machine) Abort() {
	m.phase = Disconnected
}

func denyReasonName(r DenyReason) string {
	switch r {
	case DenyWrongVersion:
		return "WrongVersion"
	case DenyServerFull:
		return "ServerFull"
	case DenyAuthFailed:
		return "AuthFailed"
	default:
		return "Unknown"
	}
}
