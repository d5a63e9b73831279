package transfer

import (
	"archive/zip"
	"bytes"
	"testing"

	"factorio-headless-client/internal/wire"

	"github.com/klauspost/compress/zlib"
)

func encodeBlock(index, declaredTotal uint32, data []byte) []byte {
	w := wire.NewWriter()
	w.WriteVarInt(index)
	w.WriteVarInt(declaredTotal)
	w.WriteBytes(data)
	return w.Bytes()
}

func TestTransferReassemblyOutOfOrder(t *testing.T) {
	tr := New()

	blocks := [][]byte{
		encodeBlock(1, 0, []byte("BBB")),
		encodeBlock(0, 3, []byte("AAA")),
		encodeBlock(2, 0, []byte("CCC")),
	}

	var complete bool
	var err error
	for _, b := range blocks {
		complete, err = tr.HandleBlock(b)
		if err != nil {
			t.Fatalf("HandleBlock: %v", err)
		}
	}
	if !complete {
		t.Fatal("expected transfer to complete once all blocks arrive")
	}

	buf, err := tr.Buffer()
	if err != nil {
		t.Fatalf("Buffer: %v", err)
	}
	if string(buf) != "AAABBBCCC" {
		t.Errorf("got %q, want %q", buf, "AAABBBCCC")
	}
}

func TestTransferDedupByIndex(t *testing.T) {
	tr := New()
	tr.HandleBlock(encodeBlock(0, 1, []byte("first")))
	complete, err := tr.HandleBlock(encodeBlock(0, 1, []byte("second")))
	if err != nil {
		t.Fatalf("HandleBlock: %v", err)
	}
	if !complete {
		t.Fatal("expected completion after single declared block")
	}
	buf, _ := tr.Buffer()
	if string(buf) != "first" {
		t.Errorf("expected first write to win, got %q", buf)
	}
}

func TestTransferAnnounceTotalPrefersEarlier(t *testing.T) {
	tr := New()
	tr.AnnounceTotal(5)
	tr.AnnounceTotal(9)
	if tr.Total() != 5 {
		t.Errorf("expected earlier total to win, got %d", tr.Total())
	}
}

func buildZipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		var inner bytes.Buffer
		zlw := zlib.NewWriter(&inner)
		zlw.Write(data)
		zlw.Close()

		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip.Create: %v", err)
		}
		w.Write(inner.Bytes())
	}
	zw.Close()
	return buf.Bytes()
}

func TestDecodeArchiveRoundTrip(t *testing.T) {
	raw := buildZipBytes(t, map[string][]byte{
		"level.dat0": []byte("prototype data"),
	})
	archive, err := DecodeArchive(raw)
	if err != nil {
		t.Fatalf("DecodeArchive: %v", err)
	}
	data, err := archive.Open("level.dat0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(data) != "prototype data" {
		t.Errorf("got %q, want %q", data, "prototype data")
	}
}

func TestDecodeArchiveMalformed(t *testing.T) {
	if _, err := DecodeArchive([]byte("not a zip")); err == nil {
		t.Error("expected TransferCorrupt on malformed archive")
	}
}
