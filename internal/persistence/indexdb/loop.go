package indexdb

import (
	"context"
	"database/sql"
	"time"
)

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	upsertZone, _ := s.db.Prepare(`INSERT OR REPLACE INTO zone_configs(zone_id,refill_threshold,similar_stack_limit,updated_at) VALUES(?,?,?,?)`)
	deleteZone, _ := s.db.Prepare(`DELETE FROM zone_configs WHERE zone_id=?`)
	insertChange, _ := s.db.Prepare(`INSERT OR REPLACE INTO zone_changes(seq,op,zone_id,from_id,refill_threshold,similar_stack_limit,at) VALUES(?,?,?,?,?,?,?)`)
	insertDecision, _ := s.db.Prepare(`INSERT INTO decisions(at,item_id,item_type,requested,x,z,zone_id,admit,quantity,reason,stack_limit,duplicates) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{upsertZone, deleteZone, insertChange, insertDecision} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	// Idle periods still commit, so in-process readers never wait on an open tx.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var (
			r  req
			ok bool
		)
		select {
		case r, ok = <-s.ch:
			if !ok {
				commit()
				return
			}
		case <-ticker.C:
			flushIfNeeded()
			continue
		}

		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqChange:
			c := r.change
			if !exec(insertChange, int64(c.Seq), c.Op, c.ZoneID, c.From, c.RefillThreshold, c.SimilarStackLimit, c.At) {
				continue
			}
			switch c.Op {
			case "SET":
				exec(upsertZone, c.ZoneID, c.RefillThreshold, c.SimilarStackLimit, c.At)
			case "DELETE":
				exec(deleteZone, c.ZoneID)
			case "RENAME":
				if exec(deleteZone, c.From) {
					exec(upsertZone, c.ZoneID, c.RefillThreshold, c.SimilarStackLimit, c.At)
				}
			}

		case reqDecision:
			d := r.decision
			admit := 0
			if d.Admit {
				admit = 1
			}
			exec(insertDecision, d.At, d.ItemID, d.ItemType, d.Requested, d.X, d.Z, d.ZoneID, admit, d.Quantity, d.Reason, d.StackLimit, d.Duplicates)
		}
		flushIfNeeded()
	}
}
