// Package transfer implements the map-transfer component of spec §4.6:
// requesting blocks, reassembling them into a contiguous buffer
// de-duplicated by block index, and exposing the result as a ZIP-backed
// Archive once every block is present.
//
// The reassembly-by-index arena is the same shape as the teacher's
// Session.SplitPackets (source/protocol/raknet.go), generalized from
// RakNet's per-datagram split packets to this protocol's whole-map block
// stream, and from a byte-concatenation result to a real archive/zip
// reader once the buffer is complete.
package transfer

import (
	"archive/zip"
	"bytes"
	"io"

	"factorio-headless-client/internal/framing"
	"factorio-headless-client/internal/protoerr"
	"factorio-headless-client/internal/wire"

	"github.com/klauspost/compress/zlib"
)

// Transfer accumulates TransferBlock payloads into a contiguous buffer.
type Transfer struct {
	blocks      map[uint32][]byte
	total       uint32 // 0 = unknown
	requestedUp uint32
}

func New() *Transfer {
	return &Transfer{blocks: make(map[uint32][]byte)}
}

// AnnounceTotal records the block count if the caller already learned it
// from ConnectionAcceptOrDeny (spec §9: prefer the earlier source).
func (t *Transfer) AnnounceTotal(total uint32) {
	if t.total == 0 {
		t.total = total
	}
}

// NextRequests returns TransferBlockRequest packets for the next n block
// indices not yet requested, advancing the request cursor (spec §4.6:
// "issues TransferBlockRequest messages for successive block indices
// starting at 0").
func (t *Transfer) NextRequests(n int) [][]byte {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if t.total > 0 && t.requestedUp >= t.total {
			break
		}
		if _, have := t.blocks[t.requestedUp]; have {
			t.requestedUp++
			i--
			continue
		}
		w := wire.NewWriter()
		w.WriteVarInt(t.requestedUp)
		h := &framing.Header{Type: framing.MsgTransferBlockRequest, Reliable: true, Payload: w.Bytes()}
		out = append(out, framing.Emit(h))
		t.requestedUp++
	}
	return out
}

// block wire format: varint index, varint declaredTotal (0 if this block
// doesn't carry the total — spec §9: the total may be announced in the
// accept message or the first block, whichever arrives first wins), then
// raw block bytes.
func decodeBlock(payload []byte) (index uint32, declaredTotal uint32, data []byte, err error) {
	r := wire.NewReader(payload)
	index, err = r.ReadVarInt()
	if err != nil {
		return 0, 0, nil, protoerr.Wrap(protoerr.ShortRead, "transfer.blockIndex", err)
	}
	declaredTotal, err = r.ReadVarInt()
	if err != nil {
		return 0, 0, nil, protoerr.Wrap(protoerr.ShortRead, "transfer.blockTotal", err)
	}
	data = payload[r.Pos():]
	return index, declaredTotal, data, nil
}

// HandleBlock ingests one TransferBlock payload, de-duplicating by index.
// It returns true once every expected block is present.
func (t *Transfer) HandleBlock(payload []byte) (complete bool, err error) {
	index, declaredTotal, data, err := decodeBlock(payload)
	if err != nil {
		return false, err
	}
	if declaredTotal > 0 {
		t.AnnounceTotal(declaredTotal)
	}
	if _, have := t.blocks[index]; !have {
		t.blocks[index] = data
	}
	if t.total == 0 {
		return false, nil
	}
	return uint32(len(t.blocks)) >= t.total, nil
}

// Received reports how many distinct blocks have arrived so far.
func (t *Transfer) Received() int { return len(t.blocks) }

// Total reports the announced block count, or 0 if not yet known.
func (t *Transfer) Total() uint32 { return t.total }

// Buffer concatenates every block in index order into the raw archive
// bytes. Callers must only call this once HandleBlock has reported
// completion.
func (t *Transfer) Buffer() ([]byte, error) {
	if t.total == 0 {
		return nil, protoerr.New(protoerr.TransferTimeout, "buffer requested before total known")
	}
	out := make([]byte, 0)
	for i := uint32(0); i < t.total; i++ {
		piece, ok := t.blocks[i]
		if !ok {
			return nil, protoerr.New(protoerr.TransferTimeout, "missing block")
		}
		out = append(out, piece...)
	}
	return out, nil
}

// Archive is the decoded ZIP archive holding the save entries (spec §3:
// "Map archive"). Entries are decompressed lazily on first read.
type Archive struct {
	zr *zip.Reader
}

// DecodeArchive opens buf as a ZIP archive. A malformed buffer is a fatal
// TransferCorrupt (spec §4.6).
func DecodeArchive(buf []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, protoerr.Wrap(protoerr.TransferCorrupt, "zip", err)
	}
	return &Archive{zr: zr}, nil
}

// Names lists the archive's entry names (spec §3: level.dat0..level.dat7,
// level-init.dat, script.dat, control.lua) in the order they appear in
// the ZIP container; they are not reordered.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// Open decompresses one archive entry. Each entry is independently
// zlib-compressed within the ZIP container (spec §4.7) in addition to
// the container's own deflate framing, so a read here first drains the
// ZIP entry (archive/zip handles the container's deflate transparently)
// and then unwraps the inner zlib stream with klauspost/compress, which
// the rest of the pack consistently reaches for over compress/zlib for
// this kind of save/wire decompression (DESIGN.md).
func (a *Archive) Open(name string) ([]byte, error) {
	for _, f := range a.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, protoerr.Wrap(protoerr.TransferCorrupt, name, err)
		}
		defer rc.Close()

		zr, err := zlib.NewReader(rc)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.DecoderRejected, name, err)
		}
		defer zr.Close()

		data, err := io.ReadAll(zr)
		if err != nil {
			return nil, protoerr.Wrap(protoerr.DecoderRejected, name, err)
		}
		return data, nil
	}
	return nil, protoerr.New(protoerr.DecoderRejected, name+": not found")
}
