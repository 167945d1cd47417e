package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	zoneID := fs.String("zone", "", "zone_id filter (changes, decisions)")
	_ = fs.Parse(args)

	q := "zones"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "stockpile.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "zones":
		rows, err := db.Query(`SELECT zone_id,refill_threshold,similar_stack_limit,updated_at FROM zone_configs ORDER BY zone_id`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				ZoneID            string `json:"zone_id"`
				RefillThreshold   int    `json:"refill_threshold"`
				SimilarStackLimit int    `json:"similar_stack_limit"`
				UpdatedAt         string `json:"updated_at"`
			}
			if err := rows.Scan(&r.ZoneID, &r.RefillThreshold, &r.SimilarStackLimit, &r.UpdatedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			_ = enc.Encode(r)
		}

	case "changes":
		rows, err := db.Query(`SELECT seq,op,zone_id,COALESCE(from_id,''),refill_threshold,similar_stack_limit,at FROM zone_changes
			WHERE (?='' OR zone_id=? OR from_id=?) ORDER BY seq DESC LIMIT ?`, *zoneID, *zoneID, *zoneID, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Seq               int64  `json:"seq"`
				Op                string `json:"op"`
				ZoneID            string `json:"zone_id"`
				From              string `json:"from,omitempty"`
				RefillThreshold   int    `json:"refill_threshold"`
				SimilarStackLimit int    `json:"similar_stack_limit"`
				At                string `json:"at"`
			}
			if err := rows.Scan(&r.Seq, &r.Op, &r.ZoneID, &r.From, &r.RefillThreshold, &r.SimilarStackLimit, &r.At); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			_ = enc.Encode(r)
		}

	case "decisions":
		rows, err := db.Query(`SELECT at,item_id,item_type,requested,x,z,COALESCE(zone_id,''),admit,quantity,reason,stack_limit,duplicates FROM decisions
			WHERE (?='' OR zone_id=?) ORDER BY id DESC LIMIT ?`, *zoneID, *zoneID, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				At         string `json:"at"`
				ItemID     string `json:"item_id"`
				ItemType   string `json:"item_type"`
				Requested  int    `json:"requested"`
				Cell       [2]int `json:"cell"`
				ZoneID     string `json:"zone_id,omitempty"`
				Admit      bool   `json:"admit"`
				Quantity   int    `json:"quantity"`
				Reason     string `json:"reason"`
				StackLimit int    `json:"stack_limit"`
				Duplicates int    `json:"duplicates"`
			}
			var admit int
			if err := rows.Scan(&r.At, &r.ItemID, &r.ItemType, &r.Requested, &r.Cell[0], &r.Cell[1], &r.ZoneID, &admit, &r.Quantity, &r.Reason, &r.StackLimit, &r.Duplicates); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.Admit = admit != 0
			_ = enc.Encode(r)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query (zones|changes|decisions):", q)
		os.Exit(2)
	}
}
