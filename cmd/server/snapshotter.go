package main

import (
	"context"
	"log"
	"sync"
	"time"

	"stockpile.ai/internal/sim/stockpile"
)

// snapshotter writes the zone config table whenever it changed since the last save.
type snapshotter struct {
	rt     *stockpile.Runtime
	dir    string
	logger *log.Logger

	mu      sync.Mutex
	lastSeq uint64
}

func newSnapshotter(rt *stockpile.Runtime, dir string, logger *log.Logger) *snapshotter {
	return &snapshotter{rt: rt, dir: dir, logger: logger, lastSeq: rt.Seq()}
}

func (s *snapshotter) run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if path, _, err := s.save(false); err != nil {
				s.logger.Printf("snapshot: %v", err)
			} else if path != "" {
				s.logger.Printf("snapshot: %s", path)
			}
		}
	}
}

// save writes a snapshot. Without force it is a no-op when nothing changed; path is then "".
func (s *snapshotter) save(force bool) (path string, seq uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq = s.rt.Seq()
	if !force && seq == s.lastSeq {
		return "", seq, nil
	}
	path, err = s.rt.SaveSnapshot(s.dir)
	if err != nil {
		return "", seq, err
	}
	s.lastSeq = seq
	return path, seq, nil
}
