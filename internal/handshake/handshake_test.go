package handshake

import (
	"testing"

	"factorio-headless-client/internal/framing"
	"factorio-headless-client/internal/wire"
)

func TestHappyPath(t *testing.T) {
	m := New(Credentials{Username: "bob", Token: "tok"})

	req, err := m.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	h, _ := framing.Parse(req)
	if h.Type != framing.MsgConnectionRequest {
		t.Errorf("expected ConnectionRequest, got %v", h.Type)
	}
	if m.Phase() != AwaitingReply {
		t.Errorf("expected AwaitingReply, got %v", m.Phase())
	}

	saltPayload := wire.NewWriter()
	saltPayload.WriteUint32(0xAB)
	confirm, err := m.HandleConnectionRequestReply(saltPayload.Bytes())
	if err != nil {
		t.Fatalf("HandleConnectionRequestReply: %v", err)
	}
	ch, _ := framing.Parse(confirm)
	if ch.Type != framing.MsgConnectionRequestReplyConfirm {
		t.Errorf("expected ConnectionRequestReplyConfirm, got %v", ch.Type)
	}
	if m.Phase() != AwaitingAcceptDeny {
		t.Errorf("expected AwaitingAcceptDeny, got %v", m.Phase())
	}

	acceptPayload := wire.NewWriter()
	acceptPayload.WriteBool(true)
	acceptPayload.WriteUint16(7)
	if err := m.HandleAcceptOrDeny(acceptPayload.Bytes()); err != nil {
		t.Fatalf("HandleAcceptOrDeny: %v", err)
	}
	if m.Phase() != MapDownload {
		t.Errorf("expected MapDownload, got %v", m.Phase())
	}
	if m.PlayerID() != 7 {
		t.Errorf("expected player ID 7, got %d", m.PlayerID())
	}

	if err := m.EnterInGame(); err != nil {
		t.Fatalf("EnterInGame: %v", err)
	}
	if m.Phase() != InGame {
		t.Errorf("expected InGame, got %v", m.Phase())
	}
}

func TestDeny(t *testing.T) {
	m := New(Credentials{Username: "bob", Token: "tok"})
	m.Begin()

	saltPayload := wire.NewWriter()
	saltPayload.WriteUint32(0xAB)
	if _, err := m.HandleConnectionRequestReply(saltPayload.Bytes()); err != nil {
		t.Fatalf("HandleConnectionRequestReply: %v", err)
	}

	denyPayload := wire.NewWriter()
	denyPayload.WriteBool(false)
	denyPayload.WriteByte(byte(DenyWrongVersion))
	err := m.HandleAcceptOrDeny(denyPayload.Bytes())
	if err == nil {
		t.Fatal("expected HandshakeDenied error")
	}
	if m.Phase() != Disconnected {
		t.Errorf("expected Disconnected after deny, got %v", m.Phase())
	}
	if m.DenyReason() != DenyWrongVersion {
		t.Errorf("expected DenyWrongVersion, got %v", m.DenyReason())
	}
}

func TestWrongPhaseTransitionRejected(t *testing.T) {
	m := New(Credentials{})
	if _, err := m.HandleConnectionRequestReply([]byte{0, 0, 0, 0}); err == nil {
		t.Error("expected error when replying before Begin")
	}
}

func TestAnnouncedTotalBlocksPreferredFromAccept(t *testing.T) {
	m := New(Credentials{})
	m.Begin()
	saltPayload := wire.NewWriter()
	saltPayload.WriteUint32(1)
	m.HandleConnectionRequestReply(saltPayload.Bytes())

	acceptPayload := wire.NewWriter()
	acceptPayload.WriteBool(true)
	acceptPayload.WriteUint16(1)
	acceptPayload.WriteVarInt(12)
	if err := m.HandleAcceptOrDeny(acceptPayload.Bytes()); err != nil {
		t.Fatalf("HandleAcceptOrDeny: %v", err)
	}
	total, ok := m.AnnouncedTotalBlocks()
	if !ok || total != 12 {
		t.Errorf("got total=%d ok=%v, want 12 true", total, ok)
	}
}
