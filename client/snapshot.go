package client

import "factorio-headless-client/internal/savedata"

// PlayerState is the player's own state as learned from heartbeats (spec
// §3); the core does not interpret it beyond carrying the raw bytes the
// server attaches to its player-state record.
type PlayerState struct {
	PlayerID uint16
	Raw      []byte
}

// WorldSnapshot is the read-only view handed to collaborators by
// Session.Snapshot() (spec §3, §6). It is mutated only by the core; a
// caller that wants to persist it should copy it.
type WorldSnapshot struct {
	Prototypes     *savedata.Table
	Entities       []savedata.EntityRecord
	ResourceCounts map[string]int
	Player         PlayerState
}

func emptySnapshot() WorldSnapshot {
	return WorldSnapshot{ResourceCounts: make(map[string]int)}
}
