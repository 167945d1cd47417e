package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stockpile.ai/internal/protocol"
	"stockpile.ai/internal/sim/stockpile"
	"stockpile.ai/internal/sim/tuning"
	"stockpile.ai/internal/sim/zoneconfig"
)

func newTestHub(t *testing.T) (*stockpile.Runtime, *Server, string) {
	t.Helper()
	rt := stockpile.New(stockpile.Config{Tuning: tuning.Defaults(), Logger: log.New(io.Discard, "", 0)})
	s := NewServer(rt, log.New(io.Discard, "", 0), 16)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return rt, s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url, name string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PeerName: name})
	var w protocol.WelcomeMsg
	read(t, conn, &w)
	if w.Type != protocol.TypeWelcome || w.SessionID == "" {
		t.Fatalf("welcome: %+v", w)
	}
	return conn, w
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, _ := json.Marshal(v)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
}

func TestHub_WelcomeCarriesTable(t *testing.T) {
	rt, _, url := newTestHub(t)
	if _, err := rt.SetZone("Z1", zoneconfig.ZoneConfig{RefillThresholdPercent: 40, SimilarStackLimit: 2}, stockpile.SetOptions{}); err != nil {
		t.Fatalf("SetZone: %v", err)
	}
	_, w := dial(t, url, "a")
	if w.Seq != 1 || len(w.Zones) != 1 {
		t.Fatalf("welcome: %+v", w)
	}
	if z := w.Zones[0]; z.ZoneID != "Z1" || z.RefillThreshold != 40 || z.SimilarStackLimit != 2 {
		t.Fatalf("zone: %+v", z)
	}
}

func TestHub_BroadcastsInOrder(t *testing.T) {
	_, s, url := newTestHub(t)
	a, wa := dial(t, url, "a")
	b, _ := dial(t, url, "b")
	if s.Peers() != 2 {
		t.Fatalf("peers: got=%d want=2", s.Peers())
	}

	send(t, a, protocol.ZoneSetMsg{Type: protocol.TypeZoneSet, ProtocolVersion: protocol.Version, ZoneID: "Z1", RefillThreshold: 50, SimilarStackLimit: 1})
	send(t, a, protocol.ZoneRenameMsg{Type: protocol.TypeZoneRename, ProtocolVersion: protocol.Version, From: "Z1", To: "Z2"})

	for _, conn := range []*websocket.Conn{a, b} {
		var c1, c2 protocol.ZoneChangedMsg
		read(t, conn, &c1)
		read(t, conn, &c2)
		if c1.Op != "SET" || c1.Seq != 1 || c1.ZoneID != "Z1" || c1.Origin != wa.SessionID {
			t.Fatalf("first change: %+v", c1)
		}
		if c2.Op != "RENAME" || c2.Seq != 2 || c2.From != "Z1" || c2.ZoneID != "Z2" || c2.RefillThreshold != 50 {
			t.Fatalf("second change: %+v", c2)
		}
	}
}

func TestHub_InteractiveRateLimit(t *testing.T) {
	_, _, url := newTestHub(t)
	a, _ := dial(t, url, "a")

	set := protocol.ZoneSetMsg{Type: protocol.TypeZoneSet, ProtocolVersion: protocol.Version, ZoneID: "Z1", RefillThreshold: 50, Interactive: true}
	send(t, a, set)
	set.ReqID = "r2"
	set.RefillThreshold = 60
	send(t, a, set)

	var changed protocol.ZoneChangedMsg
	read(t, a, &changed)
	if changed.RefillThreshold != 50 {
		t.Fatalf("change: %+v", changed)
	}
	var e protocol.ErrorMsg
	read(t, a, &e)
	if e.Type != protocol.TypeError || e.Code != protocol.ErrRateLimit || e.ReqID != "r2" || e.RetryAfterMs <= 0 {
		t.Fatalf("error: %+v", e)
	}
}

func TestHub_BadRequests(t *testing.T) {
	_, _, url := newTestHub(t)
	a, _ := dial(t, url, "a")

	send(t, a, protocol.ZoneSetMsg{Type: protocol.TypeZoneSet, ProtocolVersion: protocol.Version, ReqID: "r1"})
	var e protocol.ErrorMsg
	read(t, a, &e)
	if e.Code != protocol.ErrBadRequest || e.ReqID != "r1" {
		t.Fatalf("empty zone id: %+v", e)
	}

	send(t, a, protocol.ZoneSetMsg{Type: protocol.TypeZoneSet, ProtocolVersion: "0.1", ZoneID: "Z1"})
	read(t, a, &e)
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("bad version: %+v", e)
	}
}

func TestHub_RejectsMissingHello(t *testing.T) {
	_, _, url := newTestHub(t)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	send(t, conn, protocol.ZoneSetMsg{Type: protocol.TypeZoneSet, ProtocolVersion: protocol.Version, ZoneID: "Z1"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}
