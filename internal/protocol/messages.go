package protocol

// HELLO (peer -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PeerName        string `json:"peer_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> peer): full config table plus the sequence it reflects.
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	SessionID       string       `json:"session_id"`
	Seq             uint64       `json:"seq"`
	Zones           []ZoneConfig `json:"zones"`
}

type ZoneConfig struct {
	ZoneID            string `json:"zone_id"`
	RefillThreshold   int    `json:"refill_threshold"`
	SimilarStackLimit int    `json:"similar_stack_limit"`
}

// ZONE_SET (peer -> server). Interactive marks slider-style input that is rate limited per zone.
type ZoneSetMsg struct {
	Type              string `json:"type"`
	ProtocolVersion   string `json:"protocol_version"`
	ReqID             string `json:"req_id,omitempty"`
	ZoneID            string `json:"zone_id"`
	RefillThreshold   int    `json:"refill_threshold"`
	SimilarStackLimit int    `json:"similar_stack_limit"`
	Interactive       bool   `json:"interactive,omitempty"`
}

// ZONE_DELETE (peer -> server)
type ZoneDeleteMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	ZoneID          string `json:"zone_id"`
}

// ZONE_RENAME (peer -> server)
type ZoneRenameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	From            string `json:"from"`
	To              string `json:"to"`
}

// ZONE_COPY (peer -> server). Empty ids address the clipboard.
type ZoneCopyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
}

// ZONE_CHANGED (server -> all peers), in commit order.
type ZoneChangedMsg struct {
	Type              string `json:"type"`
	ProtocolVersion   string `json:"protocol_version"`
	Seq               uint64 `json:"seq"`
	Op                string `json:"op"` // SET | DELETE | RENAME
	ZoneID            string `json:"zone_id"`
	From              string `json:"from,omitempty"`
	RefillThreshold   int    `json:"refill_threshold"`
	SimilarStackLimit int    `json:"similar_stack_limit"`
	Origin            string `json:"origin,omitempty"` // session id of the peer that caused it
}

// ERROR (server -> peer)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	RetryAfterMs    int    `json:"retry_after_ms,omitempty"`
}
