package stockpile

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"stockpile.ai/internal/sim/admission"
	"stockpile.ai/internal/sim/catalogs"
	"stockpile.ai/internal/sim/grid"
	"stockpile.ai/internal/sim/model"
	"stockpile.ai/internal/sim/reservation"
	"stockpile.ai/internal/sim/throttle"
	"stockpile.ai/internal/sim/tuning"
	"stockpile.ai/internal/sim/zoneconfig"
)

// ChangeEvent is a committed zone config mutation with its server-wide sequence number.
type ChangeEvent struct {
	Seq    uint64
	At     time.Time
	Op     zoneconfig.Op
	ZoneID string
	From   string
	Config zoneconfig.ZoneConfig
	// Origin names who caused the change (peer session id, "api", "map").
	Origin string
}

type ChangeSink func(ev ChangeEvent)

type Config struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	Logger   *log.Logger
}

// Runtime owns the storage grid, the zone config table, the reservation ledger and the
// admission engine built over them. Zone lifecycle and config mutations must go through it so
// that every change gets a sequence number and an origin.
type Runtime struct {
	cfg    Config
	logger *log.Logger

	store   *zoneconfig.Store
	grid    *grid.Map
	ledger  *reservation.Ledger
	engine  *admission.Engine
	limiter *throttle.Limiter

	now func() time.Time
	seq atomic.Uint64

	// mutMu serializes runtime-initiated mutations so the store observer can read origin.
	mutMu  sync.Mutex
	origin string

	sinkMu        sync.RWMutex
	changeSinks   []ChangeSink
	decisionSinks []admission.DecisionSink
}

func New(cfg Config) *Runtime {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[stockpile] ", log.LstdFlags|log.Lmicroseconds)
	}
	if cfg.Catalogs == nil {
		cfg.Catalogs = &catalogs.Catalogs{}
	}
	r := &Runtime{
		cfg:     cfg,
		logger:  cfg.Logger,
		store:   zoneconfig.NewStore(),
		ledger:  reservation.NewLedger(),
		limiter: throttle.New(time.Duration(cfg.Tuning.RateLimits.CommitIntervalMs) * time.Millisecond),
		now:     time.Now,
	}
	r.grid = grid.NewMap(r.store)
	r.engine = admission.New(r.grid, r.ledger, r.store, admission.Options{
		Aggressive: cfg.Tuning.AggressiveSimilarStackLimiting,
		Sink:       decisionFanout{r},
	})
	r.store.Observe(r.onChange)
	return r
}

func (r *Runtime) Store() *zoneconfig.Store     { return r.store }
func (r *Runtime) Grid() *grid.Map              { return r.grid }
func (r *Runtime) Ledger() *reservation.Ledger  { return r.ledger }
func (r *Runtime) Engine() *admission.Engine    { return r.engine }
func (r *Runtime) Catalogs() *catalogs.Catalogs { return r.cfg.Catalogs }

// Seq is the sequence number of the last committed change.
func (r *Runtime) Seq() uint64 { return r.seq.Load() }

// SetSeq restores the change counter after loading persisted state. It never moves backwards.
func (r *Runtime) SetSeq(seq uint64) {
	for {
		cur := r.seq.Load()
		if seq <= cur || r.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

func (r *Runtime) OnChange(fn ChangeSink) {
	if fn == nil {
		return
	}
	r.sinkMu.Lock()
	r.changeSinks = append(r.changeSinks, fn)
	r.sinkMu.Unlock()
}

func (r *Runtime) OnDecision(s admission.DecisionSink) {
	if s == nil {
		return
	}
	r.sinkMu.Lock()
	r.decisionSinks = append(r.decisionSinks, s)
	r.sinkMu.Unlock()
}

// ApplyLayout builds the grid from a layout. A layout that cannot be resolved leaves the engine
// unmanaged.
func (r *Runtime) ApplyLayout(l grid.Layout) error {
	if err := l.Apply(r.grid, r.cfg.Catalogs.Items); err != nil {
		r.Degrade(err)
		return err
	}
	return nil
}

// Degrade switches the engine to pass-through mode and logs why.
func (r *Runtime) Degrade(reason error) {
	if r.engine.Managed() {
		r.logger.Printf("admission disabled (pass-through): %v", reason)
	}
	r.engine.SetManaged(false)
}

func (r *Runtime) onChange(c zoneconfig.Change) {
	ev := ChangeEvent{
		Seq:    r.seq.Add(1),
		At:     r.now().UTC(),
		Op:     c.Op,
		ZoneID: c.ID,
		From:   c.From,
		Config: c.Config,
		Origin: r.origin,
	}
	switch c.Op {
	case zoneconfig.OpDelete:
		r.limiter.Forget(c.ID)
	case zoneconfig.OpRename:
		r.limiter.Forget(c.From)
	}
	r.sinkMu.RLock()
	sinks := r.changeSinks
	r.sinkMu.RUnlock()
	for _, fn := range sinks {
		fn(ev)
	}
}

type decisionFanout struct{ r *Runtime }

func (f decisionFanout) RecordDecision(d admission.Decision) {
	f.r.sinkMu.RLock()
	sinks := f.r.decisionSinks
	f.r.sinkMu.RUnlock()
	for _, s := range sinks {
		s.RecordDecision(d)
	}
}

// Evaluate runs the admission engine for an explicit candidate stack.
func (r *Runtime) Evaluate(item model.ItemStack, cell model.Cell) admission.Verdict {
	return r.engine.Evaluate(item, cell)
}

// EvaluateItem resolves a placed item by id and evaluates it against cell.
func (r *Runtime) EvaluateItem(itemID string, cell model.Cell) (admission.Verdict, error) {
	it, ok := r.grid.Item(itemID)
	if !ok {
		return admission.Verdict{}, fmt.Errorf("evaluate %s: %w", itemID, ErrUnknownItem)
	}
	return r.engine.Evaluate(it, cell), nil
}

func (r *Runtime) Dispatch(item model.ItemStack, cell model.Cell) admission.DispatchPlan {
	return r.engine.Dispatch(item, cell)
}

// ResolveStack fills capacity and storability of a candidate from the item catalog.
func (r *Runtime) ResolveStack(id, typ string, quality, count int) (model.ItemStack, error) {
	s, err := grid.NewStack(r.cfg.Catalogs.Items, id, typ, quality, count)
	if err != nil {
		return s, fmt.Errorf("%w: %v", ErrUnknownItem, err)
	}
	return s, nil
}
