// Package framing implements the packet framing layer (spec §4.2): the
// type/flags byte, the message ID with its piggy-backed confirmation
// flag, the optional fragment ID, and the optional confirmation list.
//
// It is the generalization of the teacher repo's DataPacket
// Encode/DecodeDataPacket pair in source/protocol/raknet.go: same idea
// (a flags byte, a variable-width id, optional metadata blocks, then a
// payload), adapted to this protocol's actual bit layout, which packs
// reliable/fragmented into bits 5 and 6 of a single type byte, above the
// 5-bit message type, instead of
// shifting a 3-bit reliability field.
package framing

import (
	"factorio-headless-client/internal/protoerr"
	"factorio-headless-client/internal/wire"
)

// MessageType occupies the low 5 bits of the first packet byte.
type MessageType byte

const (
	MsgConnectionRequest            MessageType = 0x00
	MsgConnectionRequestReply       MessageType = 0x01
	MsgConnectionRequestReplyConfirm MessageType = 0x02
	MsgConnectionAcceptOrDeny       MessageType = 0x03
	MsgTransferBlockRequest         MessageType = 0x04
	MsgTransferBlock                MessageType = 0x05
	MsgHeartbeat                    MessageType = 0x06
	MsgDisconnect                   MessageType = 0x07
)

const (
	flagReliable   = 0x20
	flagFragmented = 0x40
	typeMask       = 0x1F

	confirmationBit uint16 = 0x8000
	idMask          uint16 = 0x7FFF
)

// Header is a fully decoded packet header plus its trailing payload.
type Header struct {
	Type          MessageType
	Reliable      bool
	Fragmented    bool
	MessageID     uint16
	FragmentID    uint16
	Confirmations []uint32
	Payload       []byte
}

// Parse decodes a single packet per spec §4.2.
func Parse(data []byte) (*Header, error) {
	r := wire.NewReader(data)

	flagsByte, err := r.ReadByte()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ShortRead, "header.flags", err)
	}

	h := &Header{
		Type:       MessageType(flagsByte & typeMask),
		Reliable:   flagsByte&flagReliable != 0,
		Fragmented: flagsByte&flagFragmented != 0,
	}

	rawID, err := r.ReadUint16()
	if err != nil {
		return nil, protoerr.Wrap(protoerr.ShortRead, "header.messageID", err)
	}
	hasConfirmations := rawID&confirmationBit != 0
	h.MessageID = rawID & idMask

	if h.Fragmented {
		fragID, err := r.ReadVarShort()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.BadFragment, "header.fragmentID", err)
		}
		h.FragmentID = fragID
	}

	if hasConfirmations {
		count, err := r.ReadVarInt()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.ShortRead, "header.confirmCount", err)
		}
		h.Confirmations = make([]uint32, 0, count)
		for i := uint32(0); i < count; i++ {
			id, err := r.ReadUint32()
			if err != nil {
				return nil, protoerr.Wrap(protoerr.ShortRead, "header.confirmID", err)
			}
			h.Confirmations = append(h.Confirmations, id)
		}
	}

	h.Payload = data[r.Pos():]
	return h, nil
}

// Emit encodes a Header back into wire bytes, symmetric with Parse.
func Emit(h *Header) []byte {
	w := wire.NewWriter()

	flagsByte := byte(h.Type) & typeMask
	if h.Reliable {
		flagsByte |= flagReliable
	}
	if h.Fragmented {
		flagsByte |= flagFragmented
	}
	w.WriteByte(flagsByte)

	rawID := h.MessageID & idMask
	if len(h.Confirmations) > 0 {
		rawID |= confirmationBit
	}
	w.WriteUint16(rawID)

	if h.Fragmented {
		w.WriteVarShort(h.FragmentID)
	}

	if len(h.Confirmations) > 0 {
		w.WriteVarInt(uint32(len(h.Confirmations)))
		for _, id := range h.Confirmations {
			w.WriteUint32(id)
		}
	}

	w.WriteBytes(h.Payload)
	return w.Bytes()
}
