package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"stockpile.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	// roundTrip turns a Go message into the generic form the validator expects.
	roundTrip := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	setSchema := compile("zone_set.schema.json")
	changedSchema := compile("zone_changed.schema.json")
	errorSchema := compile("error.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "peer_name":"host",
	  "max_queue":16
	}`), &hello)
	validate(helloSchema, hello)

	validate(welcomeSchema, roundTrip(protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "0b8e5c4e-3f1c-4a3e-9a55-1d1e0c8d2f10",
		Seq:             3,
		Zones: []protocol.ZoneConfig{
			{ZoneID: "Stockpile zone 1", RefillThreshold: 50, SimilarStackLimit: 2},
		},
	}))

	validate(setSchema, roundTrip(protocol.ZoneSetMsg{
		Type:              protocol.TypeZoneSet,
		ProtocolVersion:   protocol.Version,
		ReqID:             "R1",
		ZoneID:            "Stockpile zone 1",
		RefillThreshold:   40,
		SimilarStackLimit: 1,
		Interactive:       true,
	}))

	validate(changedSchema, roundTrip(protocol.ZoneChangedMsg{
		Type:              protocol.TypeZoneChanged,
		ProtocolVersion:   protocol.Version,
		Seq:               4,
		Op:                "RENAME",
		ZoneID:            "Stockpile zone 2",
		From:              "Stockpile zone 1",
		RefillThreshold:   40,
		SimilarStackLimit: 1,
	}))

	validate(errorSchema, roundTrip(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrRateLimit,
		Message:         "zone updated too recently",
		RetryAfterMs:    120,
	}))

	var bad any
	_ = json.Unmarshal([]byte(`{"type":"ZONE_CHANGED","protocol_version":"1.0","seq":1,"op":"MERGE","zone_id":"Z","refill_threshold":50,"similar_stack_limit":0}`), &bad)
	if err := changedSchema.Validate(bad); err == nil {
		t.Fatalf("expected unknown op to fail validation")
	}
}
