package savedata

import "encoding/binary"

// ScanResourceTiles interprets data as a dense per-chunk array of 16-bit
// prototype IDs (spec §3, §4.7) and aggregates per-kind counts. Position
// is not reconstructed at this layer; only counts are kept.
func ScanResourceTiles(data []byte, oreIDs map[uint16]string) map[string]int {
	counts := make(map[string]int)
	for pos := 0; pos+2 <= len(data); pos += 2 {
		id := binary.LittleEndian.Uint16(data[pos : pos+2])
		if name, ok := oreIDs[id]; ok {
			counts[name]++
		}
	}
	return counts
}
