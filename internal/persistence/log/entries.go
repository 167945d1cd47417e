package log

// DecisionEntry is the audit record of one admission decision.
type DecisionEntry struct {
	At         string `json:"at"`
	ItemID     string `json:"item_id"`
	ItemType   string `json:"item_type"`
	Requested  int    `json:"requested"`
	Cell       [2]int `json:"cell"`
	ZoneID     string `json:"zone_id,omitempty"`
	Admit      bool   `json:"admit"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
	StackLimit int    `json:"stack_limit,omitempty"`
	Duplicates int    `json:"duplicates,omitempty"`
}

// ChangeEntry is one committed zone config mutation.
type ChangeEntry struct {
	At                string `json:"at"`
	Seq               uint64 `json:"seq"`
	Op                string `json:"op"`
	ZoneID            string `json:"zone_id"`
	From              string `json:"from,omitempty"`
	RefillThreshold   int    `json:"refill_threshold"`
	SimilarStackLimit int    `json:"similar_stack_limit"`
}
