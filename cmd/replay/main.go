package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"main/internal/engine"
	"main/internal/ops"
	"main/internal/state"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	journalPath := flag.String("journal", "", "Journal file to replay")
	snapshotPath := flag.String("snapshot", "", "Snapshot to verify the replay against")
	saveSnapshot := flag.String("save-snapshot", "", "Write a snapshot of the final state")
	expectHash := flag.Uint64("expect-hash", 0, "Fail unless the final state hash matches")
	flag.Parse()

	if *journalPath == "" {
		log.Fatalf("journal path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	initial := engine.NewState(cfg.StartingCash)
	initial.Drift = cfg.Drift.Tracker()

	result, err := state.Recover(ctx, state.RecoverConfig{
		JournalPath:  *journalPath,
		SnapshotPath: *snapshotPath,
		Engine:       cfg.Engine,
		Initial:      initial,
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	logs.Infof("replayed to seq %d, %d commands", result.LastSeq, result.Commands)
	logs.Infof("final hash=%d equity=%.2f halted=%v",
		result.FinalHash, result.State.Portfolio.Equity, result.State.Halted)
	if *snapshotPath != "" {
		logs.Infof("snapshot verified at seq %d", result.LastSeq)
	}

	if *expectHash != 0 && result.FinalHash != *expectHash {
		log.Fatalf("hash mismatch: got %d, want %d", result.FinalHash, *expectHash)
	}

	if *saveSnapshot != "" {
		if err := state.WriteSnapshot(*saveSnapshot, state.Capture(result.State)); err != nil {
			log.Fatalf("snapshot write failed: %v", err)
		}
		logs.Infof("snapshot written to %s", *saveSnapshot)
	}
}
