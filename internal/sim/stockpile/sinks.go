package stockpile

import (
	"time"

	"stockpile.ai/internal/persistence/indexdb"
	plog "stockpile.ai/internal/persistence/log"
	"stockpile.ai/internal/sim/admission"
)

// DecisionLogSink appends decisions to the compressed JSONL audit log.
type DecisionLogSink struct {
	Log    *plog.DecisionLogger
	Logger interface{ Printf(string, ...any) }
	Now    func() time.Time
}

func (s DecisionLogSink) RecordDecision(d admission.Decision) {
	if s.Log == nil {
		return
	}
	if err := s.Log.WriteDecision(decisionEntry(d, now(s.Now))); err != nil && s.Logger != nil {
		s.Logger.Printf("decision log: %v", err)
	}
}

// IndexSink mirrors decisions into the sqlite read model.
type IndexSink struct {
	Index *indexdb.SQLiteIndex
	Now   func() time.Time
}

func (s IndexSink) RecordDecision(d admission.Decision) {
	if s.Index == nil {
		return
	}
	e := decisionEntry(d, now(s.Now))
	s.Index.RecordDecision(indexdb.DecisionRow{
		At:         e.At,
		ItemID:     e.ItemID,
		ItemType:   e.ItemType,
		Requested:  e.Requested,
		X:          e.Cell[0],
		Z:          e.Cell[1],
		ZoneID:     e.ZoneID,
		Admit:      e.Admit,
		Quantity:   e.Quantity,
		Reason:     e.Reason,
		StackLimit: e.StackLimit,
		Duplicates: e.Duplicates,
	})
}

// RecordChange mirrors a committed config change into the sqlite read model.
func (s IndexSink) RecordChange(ev ChangeEvent) {
	if s.Index == nil {
		return
	}
	s.Index.RecordChange(indexdb.ChangeRow{
		Seq:               ev.Seq,
		Op:                string(ev.Op),
		ZoneID:            ev.ZoneID,
		From:              ev.From,
		RefillThreshold:   ev.Config.RefillThresholdPercent,
		SimilarStackLimit: ev.Config.SimilarStackLimit,
		At:                ev.At.Format(time.RFC3339Nano),
	})
}

// ChangeLogSink returns a ChangeSink appending to the compressed change log.
func ChangeLogSink(l *plog.ChangeLogger, logger interface{ Printf(string, ...any) }) ChangeSink {
	return func(ev ChangeEvent) {
		err := l.WriteChange(plog.ChangeEntry{
			At:                ev.At.Format(time.RFC3339Nano),
			Seq:               ev.Seq,
			Op:                string(ev.Op),
			ZoneID:            ev.ZoneID,
			From:              ev.From,
			RefillThreshold:   ev.Config.RefillThresholdPercent,
			SimilarStackLimit: ev.Config.SimilarStackLimit,
		})
		if err != nil && logger != nil {
			logger.Printf("change log: %v", err)
		}
	}
}

func decisionEntry(d admission.Decision, at time.Time) plog.DecisionEntry {
	return plog.DecisionEntry{
		At:         at.UTC().Format(time.RFC3339Nano),
		ItemID:     d.Item.ID,
		ItemType:   d.Item.Type,
		Requested:  d.Item.Count,
		Cell:       d.Cell.ToArray(),
		ZoneID:     d.Verdict.ZoneID,
		Admit:      d.Verdict.Admit,
		Quantity:   d.Verdict.Quantity,
		Reason:     string(d.Verdict.Reason),
		StackLimit: d.Verdict.StackLimit,
		Duplicates: d.Verdict.Duplicates,
	}
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}
