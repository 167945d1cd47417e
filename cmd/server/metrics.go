package main

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"stockpile.ai/internal/persistence/indexdb"
	"stockpile.ai/internal/sim/admission"
	"stockpile.ai/internal/sim/stockpile"
	"stockpile.ai/internal/transport/ws"
)

var reasons = []admission.Reason{
	admission.ReasonUnmanaged,
	admission.ReasonRefill,
	admission.ReasonTopOff,
	admission.ReasonSimilarLimit,
	admission.ReasonReservedLimit,
}

// decisionCounter counts decisions per reason.
type decisionCounter struct {
	byReason map[admission.Reason]*atomic.Uint64
}

func newDecisionCounter() *decisionCounter {
	c := &decisionCounter{byReason: map[admission.Reason]*atomic.Uint64{}}
	for _, r := range reasons {
		c.byReason[r] = new(atomic.Uint64)
	}
	return c
}

func (c *decisionCounter) RecordDecision(d admission.Decision) {
	if n, ok := c.byReason[d.Verdict.Reason]; ok {
		n.Add(1)
	}
}

func metricsHandler(rt *stockpile.Runtime, hub *ws.Server, idx *indexdb.SQLiteIndex, dc *decisionCounter) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		managed := 0
		if rt.Engine().Managed() {
			managed = 1
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP stockpile_managed Whether admission limits are enforced (0 = pass-through).\n")
		fmt.Fprintf(rw, "# TYPE stockpile_managed gauge\n")
		fmt.Fprintf(rw, "stockpile_managed %d\n", managed)

		fmt.Fprintf(rw, "# HELP stockpile_change_seq Sequence number of the last committed zone config change.\n")
		fmt.Fprintf(rw, "# TYPE stockpile_change_seq counter\n")
		fmt.Fprintf(rw, "stockpile_change_seq %d\n", rt.Seq())

		fmt.Fprintf(rw, "# HELP stockpile_zone_configs Zones with a stored config.\n")
		fmt.Fprintf(rw, "# TYPE stockpile_zone_configs gauge\n")
		fmt.Fprintf(rw, "stockpile_zone_configs %d\n", rt.Store().Len())

		fmt.Fprintf(rw, "# HELP stockpile_active_jobs In-flight transfer jobs in the reservation ledger.\n")
		fmt.Fprintf(rw, "# TYPE stockpile_active_jobs gauge\n")
		fmt.Fprintf(rw, "stockpile_active_jobs %d\n", rt.Ledger().Len())

		fmt.Fprintf(rw, "# HELP stockpile_ws_peers Connected config sync peers.\n")
		fmt.Fprintf(rw, "# TYPE stockpile_ws_peers gauge\n")
		fmt.Fprintf(rw, "stockpile_ws_peers %d\n", hub.Peers())

		fmt.Fprintf(rw, "# HELP stockpile_decisions_total Admission decisions by reason.\n")
		fmt.Fprintf(rw, "# TYPE stockpile_decisions_total counter\n")
		for _, reason := range reasons {
			fmt.Fprintf(rw, "stockpile_decisions_total{reason=%q} %d\n", reason, dc.byReason[reason].Load())
		}

		if idx != nil {
			fmt.Fprintf(rw, "# HELP stockpile_index_dropped_total Decisions the sqlite writer dropped under backpressure.\n")
			fmt.Fprintf(rw, "# TYPE stockpile_index_dropped_total counter\n")
			fmt.Fprintf(rw, "stockpile_index_dropped_total %d\n", idx.Dropped())
		}
	}
}
