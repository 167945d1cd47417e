package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrZoneNotFound,
		ErrRateLimit,
		ErrConflict,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := DecodeBase([]byte(`{"type":"ZONE_SET","protocol_version":"1.0","zone_id":"Z1"}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if b.Type != TypeZoneSet || b.ProtocolVersion != Version {
		t.Fatalf("unexpected base: %+v", b)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
