package state

import (
	"context"
	"fmt"

	"main/internal/engine"
	"main/internal/recorder"
	"main/internal/schema"
)

// RecoverConfig controls journal + snapshot recovery.
type RecoverConfig struct {
	JournalPath  string
	SnapshotPath string
	Engine       engine.Config
	Initial      *engine.State
}

// RecoverResult contains recovered state and metadata.
type RecoverResult struct {
	State       *engine.State
	LastSeq     uint64
	LastEventTs schema.Timestamp
	FinalHash   uint64
	Commands    uint64
	Verified    bool
}

// Recover rebuilds engine state by folding the journal from scratch.
// The journal holds the full post-injection stream, venue responses
// included, so recovery is a pure fold: no venue, no dispatcher, no
// fault injector. When a snapshot exists its hash is checked against
// the rebuilt state at the recorded sequence, catching journals that
// were truncated or edited after the snapshot was taken.
func Recover(ctx context.Context, cfg RecoverConfig) (RecoverResult, error) {
	if cfg.JournalPath == "" {
		return RecoverResult{}, fmt.Errorf("journal path is empty")
	}
	if cfg.Initial == nil {
		return RecoverResult{}, fmt.Errorf("initial state is nil")
	}

	var snap Snapshot
	var hasSnap bool
	if cfg.SnapshotPath != "" {
		loaded, err := ReadSnapshot(cfg.SnapshotPath)
		if err != nil {
			return RecoverResult{}, fmt.Errorf("read snapshot: %w", err)
		}
		snap = loaded
		hasSnap = true
	}

	entries, err := recorder.ReadAll(cfg.JournalPath)
	if err != nil {
		return RecoverResult{}, fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		return RecoverResult{}, fmt.Errorf("journal is empty")
	}

	result := RecoverResult{State: cfg.Initial}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return RecoverResult{}, err
		}
		out := engine.Reduce(result.State, entry.Event, cfg.Engine)
		result.LastSeq = entry.Seq
		result.LastEventTs = result.State.Now
		result.FinalHash = out.StateHash
		result.Commands += uint64(len(out.Commands))

		if hasSnap && result.State.Seq == snap.LastSeq {
			if out.StateHash != snap.StateHash {
				return RecoverResult{}, fmt.Errorf(
					"snapshot hash mismatch at seq %d: journal=%d snapshot=%d",
					snap.LastSeq, out.StateHash, snap.StateHash)
			}
			result.Verified = true
		}
	}

	if hasSnap && !result.Verified {
		return RecoverResult{}, fmt.Errorf(
			"journal ended at seq %d before snapshot seq %d",
			result.State.Seq, snap.LastSeq)
	}
	return result, nil
}
