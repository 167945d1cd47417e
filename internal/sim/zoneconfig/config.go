package zoneconfig

const (
	// ClipboardID keys the configuration copied by "copy settings" when no zone owns it.
	ClipboardID = "___clipboard"

	DefaultRefillThreshold   = 100
	DefaultSimilarStackLimit = 0
)

// ZoneConfig is the per-zone admission configuration.
// (100, 0) means unmanaged: the zone behaves like plain storage.
type ZoneConfig struct {
	RefillThresholdPercent int `json:"refill_threshold"`
	SimilarStackLimit      int `json:"similar_stack_limit"`
}

func Default() ZoneConfig {
	return ZoneConfig{
		RefillThresholdPercent: DefaultRefillThreshold,
		SimilarStackLimit:      DefaultSimilarStackLimit,
	}
}

func (c ZoneConfig) Disabled() bool {
	return c.RefillThresholdPercent == DefaultRefillThreshold && c.SimilarStackLimit == DefaultSimilarStackLimit
}

// Normalize clamps the threshold to [0,100] and the limit to >= 0.
func (c ZoneConfig) Normalize() ZoneConfig {
	if c.RefillThresholdPercent < 0 {
		c.RefillThresholdPercent = 0
	}
	if c.RefillThresholdPercent > 100 {
		c.RefillThresholdPercent = 100
	}
	if c.SimilarStackLimit < 0 {
		c.SimilarStackLimit = 0
	}
	return c
}
