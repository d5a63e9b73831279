package savedata

import (
	"fmt"

	"factorio-headless-client/internal/protoerr"
)

// ArchiveReader is the subset of transfer.Archive the decoder needs,
// kept as an interface so this package doesn't import transfer.
type ArchiveReader interface {
	Names() []string
	Open(name string) ([]byte, error)
}

// EntryError reports a per-entry decode failure. Per spec §4.7/§7, one
// bad entry is reported but does not fail the whole snapshot.
type EntryError struct {
	Entry string
	Err   error
}

// Result is the decoded content of a save archive, folded into a
// client.WorldSnapshot by the caller.
type Result struct {
	Prototypes     *Table
	Entities       []EntityRecord
	ResourceCounts map[string]int
}

// entityLevelDatFiles is the entity/resource stream split used
// empirically (spec §4.7); the decoder never assumes a specific file
// carries a specific record type (spec §9), so every one of these is
// scanned for both entity triples and resource tile arrays.
func entityLevelDatFiles() []string {
	names := make([]string, 0, 7)
	for i := 1; i <= 7; i++ {
		names = append(names, fmt.Sprintf("level.dat%d", i))
	}
	return names
}

// Decode decodes the prototype table, entity records and resource tile
// counts out of an already-reassembled map archive (spec §4.7). Partial
// failures on individual entries are returned alongside whatever
// succeeded; maxEntities softly caps the number of accepted entity
// records (spec §6 max_snapshot_entities); cfg supplies the scanner's
// filter constants (spec §9).
func Decode(archive ArchiveReader, maxEntities int, cfg DecoderConfig) (*Result, []EntryError) {
	var errs []EntryError

	protoData, err := archive.Open("level.dat0")
	if err != nil {
		errs = append(errs, EntryError{Entry: "level.dat0", Err: protoerr.Wrap(protoerr.DecoderRejected, "level.dat0", err)})
		return &Result{Prototypes: newTable(), ResourceCounts: map[string]int{}}, errs
	}

	table := ScanPrototypes(protoData, cfg)
	oreIDs := OreIDs(table, cfg)
	allIDs := make(map[uint16]bool, len(table.entries))
	for _, p := range table.entries {
		allIDs[p.ID] = true
	}
	knownEntityID := func(id uint16) bool {
		if _, ore := oreIDs[id]; ore {
			return false
		}
		return allIDs[id]
	}

	result := &Result{Prototypes: table, ResourceCounts: make(map[string]int)}

	for _, name := range entityLevelDatFiles() {
		data, err := archive.Open(name)
		if err != nil {
			errs = append(errs, EntryError{Entry: name, Err: protoerr.Wrap(protoerr.DecoderRejected, name, err)})
			continue
		}

		for kind, count := range ScanResourceTiles(data, oreIDs) {
			result.ResourceCounts[kind] += count
		}

		for _, e := range ScanEntities(data, knownEntityID, cfg) {
			if maxEntities > 0 && len(result.Entities) >= maxEntities {
				break
			}
			result.Entities = append(result.Entities, e)
		}
	}

	return result, errs
}
