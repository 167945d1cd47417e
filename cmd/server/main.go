package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stockpile.ai/internal/persistence/indexdb"
	persistlog "stockpile.ai/internal/persistence/log"
	"stockpile.ai/internal/persistence/snapshot"
	"stockpile.ai/internal/sim/catalogs"
	"stockpile.ai/internal/sim/grid"
	"stockpile.ai/internal/sim/stockpile"
	"stockpile.ai/internal/sim/tuning"
	"stockpile.ai/internal/transport/api"
	"stockpile.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "path to layout.yaml (default: <configs>/layout.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read model (changes + decisions)")
		noDecLog   = flag.Bool("disable_decision_log", false, "do not write the decision JSONL log")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
		if err := tuning.ApplyEnv(&tune); err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune.Normalize()
	}

	// Missing catalogs or a broken layout leave the engine in pass-through mode.
	cats, catErr := catalogs.Load(*configDir)
	rt := stockpile.New(stockpile.Config{
		Tuning:   tune,
		Catalogs: cats,
		Logger:   log.New(os.Stdout, "[stockpile] ", log.LstdFlags|log.Lmicroseconds),
	})
	if catErr != nil {
		rt.Degrade(catErr)
	}

	lp := strings.TrimSpace(*layoutPath)
	if lp == "" {
		lp = filepath.Join(*configDir, "layout.yaml")
	}
	if layout, err := grid.LoadLayout(lp); err != nil {
		if os.IsNotExist(err) {
			logger.Printf("layout not found (%s); starting with an empty grid", lp)
		} else {
			rt.Degrade(err)
		}
	} else if catErr == nil {
		if err := rt.ApplyLayout(layout); err != nil {
			logger.Printf("apply layout: %v", err)
		}
	}

	snapDir := filepath.Join(*dataDir, "snapshots")
	toLoad := strings.TrimSpace(*snapPath)
	if toLoad == "" && *loadLatest {
		toLoad = snapshot.Latest(snapDir)
	}
	if toLoad != "" {
		snap, err := snapshot.ReadSnapshot(toLoad)
		if err != nil {
			logger.Fatalf("load snapshot: %v", err)
		}
		if err := rt.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		logger.Printf("loaded snapshot %s (seq=%d zones=%d)", toLoad, snap.Header.Seq, len(snap.Zones))
	}

	// Optional: sqlite read model. It may be ahead of the newest snapshot after a crash.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "stockpile.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if cats != nil {
			if err := idx.UpsertCatalogs(cats); err != nil {
				logger.Printf("index: upsert catalogs: %v", err)
			}
		}
		recoverFromIndex(rt, idx, logger)
	}

	changeLog := persistlog.NewChangeLogger(*dataDir)
	defer changeLog.Close()
	rt.OnChange(stockpile.ChangeLogSink(changeLog, logger))

	counter := newDecisionCounter()
	rt.OnDecision(counter)
	if !*noDecLog {
		decLog := persistlog.NewDecisionLogger(*dataDir)
		defer decLog.Close()
		rt.OnDecision(stockpile.DecisionLogSink{Log: decLog, Logger: logger})
	}
	if idx != nil {
		sink := stockpile.IndexSink{Index: idx}
		rt.OnChange(sink.RecordChange)
		rt.OnDecision(sink)
	}

	ctx, cancel := signalContext()
	defer cancel()

	snapshotter := newSnapshotter(rt, snapDir, logger)
	go snapshotter.run(ctx, time.Duration(tune.SnapshotEverySec)*time.Second)

	hub := ws.NewServer(rt, logger, tune.RateLimits.PeerQueue)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(rt, hub, idx, counter))

	if envBool("STOCKPILE_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Seq        uint64 `json:"seq"`
				Managed    bool   `json:"managed"`
				Aggressive bool   `json:"aggressive"`
				Zones      int    `json:"zones"`
				GridZones  int    `json:"grid_zones"`
				ActiveJobs int    `json:"active_jobs"`
				Peers      int    `json:"peers"`
			}{
				Seq:        rt.Seq(),
				Managed:    rt.Engine().Managed(),
				Aggressive: rt.Engine().Aggressive(),
				Zones:      rt.Store().Len(),
				GridZones:  len(rt.Grid().ZoneIDs()),
				ActiveJobs: rt.Ledger().Len(),
				Peers:      hub.Peers(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			path, seq, err := snapshotter.save(true)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "seq": seq, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "seq": seq, "path": path})
		})
	} else {
		logger.Printf("admin endpoints disabled (STOCKPILE_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("STOCKPILE_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", hub.Handler())
	api.NewServer(rt, logger).Register(mux)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (managed=%v aggressive=%v)", *addr, rt.Engine().Managed(), rt.Engine().Aggressive())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	if path, _, err := snapshotter.save(false); err != nil {
		logger.Printf("final snapshot: %v", err)
	} else if path != "" {
		logger.Printf("final snapshot: %s", path)
	}
	if idx != nil {
		ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
		_ = idx.Flush(ctx3)
		cancel3()
	}
}

func recoverFromIndex(rt *stockpile.Runtime, idx *indexdb.SQLiteIndex, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	seq, err := idx.LastChangeSeq(ctx)
	if err != nil {
		logger.Printf("index: last change seq: %v", err)
		return
	}
	if seq <= rt.Seq() {
		return
	}
	rows, err := idx.LoadZoneConfigs(ctx)
	if err != nil {
		logger.Printf("index: load zone configs: %v", err)
		return
	}
	rt.ImportZoneRows(rows, seq)
	logger.Printf("index ahead of snapshot; restored %d zone configs at seq=%d", len(rows), seq)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
