// Package wire is the binary codec layer: a cursored reader over an
// immutable byte slice and an appending writer into a growing buffer,
// plus the varint/varshort/Fixed32 encodings spec §4.1 describes.
//
// It plays the role the teacher repo's protocol.BitStream plays for
// RakNet, generalized to the encodings this protocol actually uses:
// everything here is little-endian, and reads past the end of the
// buffer return protoerr.ShortRead instead of a generic error.
package wire

import (
	"encoding/binary"

	"factorio-headless-client/internal/protoerr"
)

// Reader is a cursored, read-only view over a byte slice.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Pos returns the current cursor offset.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) require(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return protoerr.New(protoerr.ShortRead, "")
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	return b != 0, err
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadString8 reads a byte-length-prefixed UTF-8 string (used for
// prototype names, ≤255 bytes per spec §3).
func (r *Reader) ReadString8() (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadString16 reads a uint16-length-prefixed UTF-8 string.
func (r *Reader) ReadString16() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadVarShort reads the compact encoding from spec §4.1: values below
// 0xFF are a single byte; 0xFF is followed by a little-endian uint16.
func (r *Reader) ReadVarShort() (uint16, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b < 0xFF {
		return uint16(b), nil
	}
	return r.ReadUint16()
}

// ReadVarInt reads the compact encoding from spec §4.1: values below
// 0xFF are a single byte; 0xFF is followed by a little-endian uint32.
func (r *Reader) ReadVarInt() (uint32, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b < 0xFF {
		return uint32(b), nil
	}
	return r.ReadUint32()
}

// Fixed32 is a signed fixed-point tile coordinate: 256 units per tile.
type Fixed32 int32

// Tiles converts to a float64 tile coordinate. The conversion is advisory
// only — integer arithmetic on Fixed32 is always exact, per spec §4.1.
func (f Fixed32) Tiles() float64 {
	return float64(f) / 256.0
}

func FixedFromTiles(t float64) Fixed32 {
	return Fixed32(int32(t * 256))
}

func (r *Reader) ReadFixed32() (Fixed32, error) {
	v, err := r.ReadInt32()
	return Fixed32(v), err
}

// Writer is an appending byte buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteByte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

func (w *Writer) WriteFixed32(v Fixed32) { w.WriteInt32(int32(v)) }

func (w *Writer) WriteString8(s string) {
	w.WriteByte(byte(len(s)))
	w.WriteBytes([]byte(s))
}

func (w *Writer) WriteString16(s string) {
	w.WriteUint16(uint16(len(s)))
	w.WriteBytes([]byte(s))
}

// WriteVarShort emits the shortest form: a single byte if v < 0xFF,
// otherwise the 0xFF sentinel followed by the full uint16.
func (w *Writer) WriteVarShort(v uint16) {
	if v < 0xFF {
		w.WriteByte(byte(v))
		return
	}
	w.WriteByte(0xFF)
	w.WriteUint16(v)
}

// WriteVarInt emits the shortest form: a single byte if v < 0xFF,
// otherwise the 0xFF sentinel followed by the full uint32.
func (w *Writer) WriteVarInt(v uint32) {
	if v < 0xFF {
		w.WriteByte(byte(v))
		return
	}
	w.WriteByte(0xFF)
	w.WriteUint32(v)
}
