package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stockpile.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "replay":
			replayCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "zones":
			zonesCmd(os.Args[2:])
			return
		}
	}
	zonesCmd(os.Args[1:])
}

// zonesCmd prints the zone config table of a snapshot.
func zonesCmd(args []string) {
	fs := flag.NewFlagSet("zones", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshots found")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("# %s seq=%d created_at=%s aggressive=%v\n", filepath.Base(path), snap.Header.Seq, snap.Header.CreatedAt, snap.Aggressive)
	for _, z := range snap.Zones {
		fmt.Printf("%s\trefill=%d\tsimilar=%d\n", z.ID, z.RefillThreshold, z.SimilarStackLimit)
	}
}
