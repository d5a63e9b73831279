// Package config loads ConnectOptions from YAML (spec §6), applying the
// same load-then-default-fill pattern the minewire server.yaml loader
// uses, generalized from a fixed global to a returned value.
package config

import (
	"os"

	"factorio-headless-client/internal/protoerr"
	"factorio-headless-client/internal/savedata"

	"gopkg.in/yaml.v3"
)

// Options is the tunable surface of a connection (spec §6).
type Options struct {
	HeartbeatHz        int `yaml:"heartbeat_hz"`
	RetransmitMs       int `yaml:"retransmit_ms"`
	RetryCap           int `yaml:"retry_cap"`
	AckWindowMs        int `yaml:"ack_window_ms"`
	FragmentTTLMs      int `yaml:"fragment_ttl_ms"`
	MaxSnapshotEntities int `yaml:"max_snapshot_entities"`

	// Decoder overrides the save decoder's scanner filter constants
	// (spec §9), zero-valued here meaning "use savedata.DefaultDecoderConfig()".
	Decoder savedata.DecoderConfig `yaml:"decoder"`
}

// Defaults returns the baseline Options used when a field is left zero
// by the loaded file (spec §6).
func Defaults() Options {
	return Options{
		HeartbeatHz:         60,
		RetransmitMs:        200,
		RetryCap:            10,
		AckWindowMs:         50,
		FragmentTTLMs:       5000,
		MaxSnapshotEntities: 1000000,
		Decoder:             savedata.DefaultDecoderConfig(),
	}
}

// Load reads a YAML file at path and fills unset fields from Defaults().
func Load(path string) (Options, error) {
	opts := Defaults()

	f, err := os.Open(path)
	if err != nil {
		return opts, protoerr.Wrap(protoerr.DecoderRejected, path, err)
	}
	defer f.Close()

	var loaded Options
	if err := yaml.NewDecoder(f).Decode(&loaded); err != nil {
		return opts, protoerr.Wrap(protoerr.DecoderRejected, path, err)
	}

	applyNonZero(&opts, loaded)
	return opts, nil
}

func applyNonZero(dst *Options, src Options) {
	if src.HeartbeatHz != 0 {
		dst.HeartbeatHz = src.HeartbeatHz
	}
	if src.RetransmitMs != 0 {
		dst.RetransmitMs = src.RetransmitMs
	}
	if src.RetryCap != 0 {
		dst.RetryCap = src.RetryCap
	}
	if src.AckWindowMs != 0 {
		dst.AckWindowMs = src.AckWindowMs
	}
	if src.FragmentTTLMs != 0 {
		dst.FragmentTTLMs = src.FragmentTTLMs
	}
	if src.MaxSnapshotEntities != 0 {
		dst.MaxSnapshotEntities = src.MaxSnapshotEntities
	}
	applyDecoderConfig(&dst.Decoder, src.Decoder)
}

func applyDecoderConfig(dst *savedata.DecoderConfig, src savedata.DecoderConfig) {
	if src.MaxBoundTiles != 0 {
		dst.MaxBoundTiles = src.MaxBoundTiles
	}
	if src.AlignmentDivisor != 0 {
		dst.AlignmentDivisor = src.AlignmentDivisor
	}
	if src.MinSpanTiles != 0 {
		dst.MinSpanTiles = src.MinSpanTiles
	}
	if src.NameMinLen != 0 {
		dst.NameMinLen = src.NameMinLen
	}
	if src.NameMaxLen != 0 {
		dst.NameMaxLen = src.NameMaxLen
	}
	if len(src.AnchorNames) != 0 {
		dst.AnchorNames = src.AnchorNames
	}
	if len(src.OreNames) != 0 {
		dst.OreNames = src.OreNames
	}
}
