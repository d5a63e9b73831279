package framing

import (
	"bytes"
	"testing"
)

func TestParseEmitRoundTrip(t *testing.T) {
	h := &Header{
		Type:       MsgHeartbeat,
		Reliable:   true,
		Fragmented: false,
		MessageID:  42,
		Payload:    []byte{0xAA, 0xBB},
	}
	encoded := Emit(h)

	decoded, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if decoded.Type != h.Type {
		t.Errorf("Type: got %v, want %v", decoded.Type, h.Type)
	}
	if decoded.Reliable != h.Reliable {
		t.Errorf("Reliable: got %v, want %v", decoded.Reliable, h.Reliable)
	}
	if decoded.MessageID != h.MessageID {
		t.Errorf("MessageID: got %v, want %v", decoded.MessageID, h.MessageID)
	}
	if !bytes.Equal(decoded.Payload, h.Payload) {
		t.Errorf("Payload: got %v, want %v", decoded.Payload, h.Payload)
	}
}

func TestEmitParseRoundTripAllFlags(t *testing.T) {
	h := &Header{
		Type:          MsgTransferBlock,
		Reliable:      true,
		Fragmented:    true,
		MessageID:     1000,
		FragmentID:    0x1234,
		Confirmations: []uint32{1, 2, 3},
		Payload:       []byte("payload"),
	}
	encoded := Emit(h)
	decoded, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if decoded.FragmentID != h.FragmentID {
		t.Errorf("FragmentID: got %v, want %v", decoded.FragmentID, h.FragmentID)
	}
	if len(decoded.Confirmations) != len(h.Confirmations) {
		t.Fatalf("Confirmations length: got %d, want %d", len(decoded.Confirmations), len(h.Confirmations))
	}
	for i, id := range h.Confirmations {
		if decoded.Confirmations[i] != id {
			t.Errorf("Confirmations[%d]: got %v, want %v", i, decoded.Confirmations[i], id)
		}
	}
	if !bytes.Equal(decoded.Payload, h.Payload) {
		t.Errorf("Payload mismatch")
	}
}

func TestParseStripsConfirmationBit(t *testing.T) {
	h := &Header{Type: MsgConnectionRequest, MessageID: 0x7FFF}
	encoded := Emit(h)
	decoded, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if decoded.MessageID != 0x7FFF {
		t.Errorf("MessageID: got %v, want 0x7FFF", decoded.MessageID)
	}
}

func TestParseEncodeHeaderBytesIdentity(t *testing.T) {
	raw := []byte{byte(MsgConnectionRequest) | flagReliable, 0x05, 0x00, 'h', 'i'}
	h, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	reencoded := Emit(h)
	if !bytes.Equal(raw, reencoded) {
		t.Errorf("got %v, want %v", reencoded, raw)
	}
}

func TestParseShortBuffer(t *testing.T) {
	if _, err := Parse([]byte{}); err == nil {
		t.Error("expected ShortRead on empty buffer")
	}
}
