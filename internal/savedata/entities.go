package savedata

import (
	"encoding/binary"

	"factorio-headless-client/internal/wire"
)

const tileUnit = 256 // Fixed32 units per tile (spec §4.1)

// EntityRecord is one decoded entity placement (spec §3). Valid iff it
// passed every filter in spec §4.7.
type EntityRecord struct {
	PrototypeID uint16
	X           wire.Fixed32
	Y           wire.Fixed32
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// acceptEntity applies the five filters of spec §4.7 in order, with the
// bound/alignment/span thresholds read from cfg instead of baked in
// (spec §9: these must be overridable without a code edit).
func acceptEntity(id uint16, x, y int32, knownEntityID func(uint16) bool, cfg DecoderConfig) bool {
	if !knownEntityID(id) {
		return false
	}
	if x == 0 && y == 0 {
		return false
	}
	boundTiles := int32(cfg.MaxBoundTiles) * tileUnit
	if abs32(x) > boundTiles || abs32(y) > boundTiles {
		return false
	}
	if cfg.AlignmentDivisor != 0 && (x%cfg.AlignmentDivisor == 0 || y%cfg.AlignmentDivisor == 0) {
		return false
	}
	minSpan := int32(cfg.MinSpanTiles) * tileUnit
	if abs32(x) <= minSpan && abs32(y) <= minSpan {
		return false
	}
	return true
}

// ScanEntities scans a level.dat entity block for [id u16][x i32][y i32]
// triples (spec §4.7). knownEntityID reports whether id falls in a known
// entity range as enumerated by kind in the prototype table. Overlapping
// candidate windows are resolved left-to-right: once a record is
// accepted the cursor advances past it before looking for the next
// (spec §4.7 tie-break rule).
func ScanEntities(data []byte, knownEntityID func(uint16) bool, cfg DecoderConfig) []EntityRecord {
	const recordSize = 2 + 4 + 4
	var out []EntityRecord

	pos := 0
	for pos+recordSize <= len(data) {
		id := binary.LittleEndian.Uint16(data[pos : pos+2])
		x := int32(binary.LittleEndian.Uint32(data[pos+2 : pos+6]))
		y := int32(binary.LittleEndian.Uint32(data[pos+6 : pos+10]))

		if acceptEntity(id, x, y, knownEntityID, cfg) {
			out = append(out, EntityRecord{PrototypeID: id, X: wire.Fixed32(x), Y: wire.Fixed32(y)})
			pos += recordSize
			continue
		}
		pos++
	}
	return out
}
