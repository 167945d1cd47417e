package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stockpile.ai/internal/protocol"
	"stockpile.ai/internal/sim/stockpile"
	"stockpile.ai/internal/sim/zoneconfig"
)

// Server is the zone config sync hub. Every peer gets the full table on join and then every
// committed change in server order; a peer that cannot keep up is disconnected and must rejoin.
type Server struct {
	rt  *stockpile.Runtime
	log *log.Logger

	maxQueue int
	upgrader websocket.Upgrader

	mu    sync.Mutex
	peers map[string]*peer
}

type peer struct {
	id   string
	name string
	out  chan outMsg
}

type outMsg struct {
	// seq is zero for direct replies.
	seq uint64
	b   []byte
}

func NewServer(rt *stockpile.Runtime, logger *log.Logger, maxQueue int) *Server {
	if maxQueue <= 0 {
		maxQueue = 64
	}
	s := &Server{
		rt:       rt,
		log:      logger,
		maxQueue: maxQueue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		peers: map[string]*peer{},
	}
	rt.OnChange(s.broadcast)
	return s
}

// Peers is the number of connected peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		p, welcomeSeq := s.handshake(conn)
		if p == nil {
			return
		}
		defer s.drop(p)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case m, ok := <-p.out:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "lagging"), time.Now().Add(time.Second))
						_ = conn.Close()
						return
					}
					if m.seq != 0 && m.seq <= welcomeSeq {
						// Already part of WELCOME.
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, m.b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.handle(p, msg)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*peer, uint64) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, 0
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, 0
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, 0
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, 0
	}
	if hello.PeerName == "" {
		hello.PeerName = "peer"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 || maxQ > s.maxQueue {
		maxQ = s.maxQueue
	}
	p := &peer{
		id:   uuid.NewString(),
		name: hello.PeerName,
		out:  make(chan outMsg, maxQ),
	}

	// Register before reading the table: changes committed in between are queued and then
	// skipped by seq, so nothing falls between WELCOME and the stream.
	s.mu.Lock()
	s.peers[p.id] = p
	s.mu.Unlock()

	snap := s.rt.ExportSnapshot()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       p.id,
		Seq:             snap.Header.Seq,
		Zones:           make([]protocol.ZoneConfig, 0, len(snap.Zones)),
	}
	for _, z := range snap.Zones {
		welcome.Zones = append(welcome.Zones, protocol.ZoneConfig{
			ZoneID:            z.ID,
			RefillThreshold:   z.RefillThreshold,
			SimilarStackLimit: z.SimilarStackLimit,
		})
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.drop(p)
		return nil, 0
	}
	if s.log != nil {
		s.log.Printf("peer joined: %s (%s)", p.id, p.name)
	}
	return p, welcome.Seq
}

// drop unregisters p. Safe to call more than once.
func (s *Server) drop(p *peer) {
	s.mu.Lock()
	if cur, ok := s.peers[p.id]; ok && cur == p {
		delete(s.peers, p.id)
		close(p.out)
	}
	s.mu.Unlock()
}

func (s *Server) broadcast(ev stockpile.ChangeEvent) {
	b, err := json.Marshal(protocol.ZoneChangedMsg{
		Type:              protocol.TypeZoneChanged,
		ProtocolVersion:   protocol.Version,
		Seq:               ev.Seq,
		Op:                string(ev.Op),
		ZoneID:            ev.ZoneID,
		From:              ev.From,
		RefillThreshold:   ev.Config.RefillThresholdPercent,
		SimilarStackLimit: ev.Config.SimilarStackLimit,
		Origin:            ev.Origin,
	})
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.peers {
		select {
		case p.out <- outMsg{seq: ev.Seq, b: b}:
		default:
			// A gap would leave the peer with a stale table; make it rejoin instead.
			delete(s.peers, id)
			close(p.out)
			if s.log != nil {
				s.log.Printf("peer lagging, disconnected: %s", id)
			}
		}
	}
}

func (s *Server) reply(p *peer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[p.id]; !ok {
		return
	}
	select {
	case p.out <- outMsg{b: b}:
	default:
	}
}

func (s *Server) replyError(p *peer, reqID, code, message string, retryAfter time.Duration) {
	s.reply(p, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Code:            code,
		Message:         message,
		RetryAfterMs:    int(retryAfter / time.Millisecond),
	})
}

func (s *Server) handle(p *peer, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.replyError(p, "", protocol.ErrProtoBadRequest, "bad json", 0)
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.replyError(p, "", protocol.ErrProtoBadRequest, "bad protocol_version", 0)
		return
	}

	var (
		reqID string
		opErr error
	)
	switch base.Type {
	case protocol.TypeZoneSet:
		var m protocol.ZoneSetMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.replyError(p, "", protocol.ErrProtoBadRequest, "bad ZONE_SET", 0)
			return
		}
		reqID = m.ReqID
		_, opErr = s.rt.SetZone(m.ZoneID, zoneconfig.ZoneConfig{
			RefillThresholdPercent: m.RefillThreshold,
			SimilarStackLimit:      m.SimilarStackLimit,
		}, stockpile.SetOptions{Origin: p.id, Interactive: m.Interactive})

	case protocol.TypeZoneDelete:
		var m protocol.ZoneDeleteMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.replyError(p, "", protocol.ErrProtoBadRequest, "bad ZONE_DELETE", 0)
			return
		}
		reqID = m.ReqID
		opErr = s.rt.DeleteZoneConfig(m.ZoneID, p.id)

	case protocol.TypeZoneRename:
		var m protocol.ZoneRenameMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.replyError(p, "", protocol.ErrProtoBadRequest, "bad ZONE_RENAME", 0)
			return
		}
		reqID = m.ReqID
		opErr = s.rt.RenameZone(m.From, m.To, p.id)

	case protocol.TypeZoneCopy:
		var m protocol.ZoneCopyMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			s.replyError(p, "", protocol.ErrProtoBadRequest, "bad ZONE_COPY", 0)
			return
		}
		reqID = m.ReqID
		opErr = s.rt.CopyZone(m.To, m.From, p.id)

	default:
		s.replyError(p, "", protocol.ErrProtoBadRequest, "unexpected type: "+base.Type, 0)
		return
	}

	if opErr == nil {
		return
	}
	code, retry := stockpile.ErrorCode(opErr)
	s.replyError(p, reqID, code, opErr.Error(), retry)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
