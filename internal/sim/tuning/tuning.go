package tuning

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// AggressiveSimilarStackLimiting counts in-flight storage jobs toward similar-stack limits.
	AggressiveSimilarStackLimiting bool `yaml:"aggressive_similar_stack_limiting" env:"STOCKPILE_AGGRESSIVE"`

	// MaxSimilarStackLimit bounds what interactive controls may set (the store itself only clamps at 0).
	MaxSimilarStackLimit int `yaml:"max_similar_stack_limit" env:"STOCKPILE_MAX_SIMILAR_STACK_LIMIT"`

	SnapshotEverySec int `yaml:"snapshot_every_sec" env:"STOCKPILE_SNAPSHOT_EVERY_SEC"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	// CommitIntervalMs is the minimum gap between committed interactive mutations of one zone.
	CommitIntervalMs int `yaml:"commit_interval_ms" env:"STOCKPILE_COMMIT_INTERVAL_MS"`
	// PeerQueue is the per-peer outbound message buffer of the sync hub.
	PeerQueue int `yaml:"peer_queue" env:"STOCKPILE_PEER_QUEUE"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:                "1.0",
		AggressiveSimilarStackLimiting: true,
		MaxSimilarStackLimit:           8,
		SnapshotEverySec:               60,
		RateLimits: RateLimits{
			CommitIntervalMs: 250,
			PeerQueue:        64,
		},
	}
}

// Load reads tuning.yaml over the defaults, then applies STOCKPILE_* environment overrides.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := ApplyEnv(&t); err != nil {
		return t, err
	}
	t.Normalize()
	return t, nil
}

func ApplyEnv(t *Tuning) error {
	if err := env.Parse(t); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (t *Tuning) Normalize() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.MaxSimilarStackLimit <= 0 {
		t.MaxSimilarStackLimit = d.MaxSimilarStackLimit
	}
	if t.SnapshotEverySec < 0 {
		t.SnapshotEverySec = 0
	}
	if t.RateLimits.CommitIntervalMs < 0 {
		t.RateLimits.CommitIntervalMs = 0
	}
	if t.RateLimits.PeerQueue <= 0 {
		t.RateLimits.PeerQueue = d.RateLimits.PeerQueue
	}
	if t.RateLimits.PeerQueue > 1024 {
		t.RateLimits.PeerQueue = 1024
	}
}
