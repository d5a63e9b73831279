package wire

import "testing"

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteByte(0x42)
	w.WriteUint16(1234)
	w.WriteUint32(567890)
	w.WriteString8("hello")
	w.WriteFixed32(Fixed32(1024))

	r := NewReader(w.Bytes())

	b, err := r.ReadByte()
	if err != nil || b != 0x42 {
		t.Errorf("ReadByte: got %v, %v", b, err)
	}
	u16, err := r.ReadUint16()
	if err != nil || u16 != 1234 {
		t.Errorf("ReadUint16: got %v, %v", u16, err)
	}
	u32, err := r.ReadUint32()
	if err != nil || u32 != 567890 {
		t.Errorf("ReadUint32: got %v, %v", u32, err)
	}
	s, err := r.ReadString8()
	if err != nil || s != "hello" {
		t.Errorf("ReadString8: got %q, %v", s, err)
	}
	f, err := r.ReadFixed32()
	if err != nil || f != Fixed32(1024) {
		t.Errorf("ReadFixed32: got %v, %v", f, err)
	}
	if f.Tiles() != 4.0 {
		t.Errorf("Tiles: got %v, want 4.0", f.Tiles())
	}
}

func TestShortRead(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.ReadUint32(); err == nil {
		t.Error("expected ShortRead error, got nil")
	}
}

func TestVarShortRoundTrip(t *testing.T) {
	cases := []uint16{0, 1, 254, 255, 256, 65535}
	for _, v := range cases {
		w := NewWriter()
		w.WriteVarShort(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadVarShort()
		if err != nil {
			t.Fatalf("v=%d: %v", v, err)
		}
		if got != v {
			t.Errorf("v=%d: got %d", v, got)
		}
	}
}

func TestVarShortShortestForm(t *testing.T) {
	w := NewWriter()
	w.WriteVarShort(10)
	if len(w.Bytes()) != 1 {
		t.Errorf("expected single-byte encoding for 10, got %d bytes", len(w.Bytes()))
	}

	w2 := NewWriter()
	w2.WriteVarShort(300)
	if len(w2.Bytes()) != 3 {
		t.Errorf("expected 3-byte encoding for 300, got %d bytes", len(w2.Bytes()))
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 254, 255, 256, 4294967295}
	for _, v := range cases {
		w := NewWriter()
		w.WriteVarInt(v)
		r := NewReader(w.Bytes())
		got, err := r.ReadVarInt()
		if err != nil {
			t.Fatalf("v=%d: %v", v, err)
		}
		if got != v {
			t.Errorf("v=%d: got %d", v, got)
		}
	}
}

func TestFixedFromTiles(t *testing.T) {
	f := FixedFromTiles(2.5)
	if f != Fixed32(640) {
		t.Errorf("got %v, want 640", f)
	}
}
