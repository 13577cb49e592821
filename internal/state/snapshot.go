package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/engine"
	"main/internal/schema"
)

// Snapshot pins a verified point in a recorded run: the sequence
// reached, the state hash at that sequence, and a portfolio summary.
type Snapshot struct {
	Timestamp   int64            `json:"timestamp"`
	LastSeq     uint64           `json:"lastSeq"`
	LastEventTs schema.Timestamp `json:"lastEventTs"`
	StateHash   uint64           `json:"stateHash"`
	Cash        float64          `json:"cash"`
	Equity      float64          `json:"equity"`
	RealizedPnL float64          `json:"realizedPnl"`
	Halted      bool             `json:"halted"`
	Positions   []PositionEntry  `json:"positions"`
}

// PositionEntry is a single symbol position entry.
type PositionEntry struct {
	Symbol     string  `json:"symbol"`
	Qty        float64 `json:"qty"`
	EntryPrice float64 `json:"entryPrice"`
}

// Capture builds a snapshot from the current engine state.
func Capture(s *engine.State) Snapshot {
	entries := make([]PositionEntry, 0, len(s.Portfolio.Positions))
	for symbol, pos := range s.Portfolio.Positions {
		entries = append(entries, PositionEntry{
			Symbol:     symbol,
			Qty:        pos.Qty,
			EntryPrice: pos.EntryPrice,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Symbol < entries[j].Symbol
	})
	return Snapshot{
		Timestamp:   time.Now().UTC().UnixNano(),
		LastSeq:     s.Seq,
		LastEventTs: s.Now,
		StateHash:   s.Hash(),
		Cash:        s.Portfolio.Cash,
		Equity:      s.Portfolio.Equity,
		RealizedPnL: s.Portfolio.RealizedPnL,
		Halted:      s.Halted,
		Positions:   entries,
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// CompareSnapshots checks if two snapshots describe the same state.
func CompareSnapshots(expected, actual Snapshot) error {
	if expected.StateHash != actual.StateHash {
		return fmt.Errorf("snapshot hash mismatch: expected=%d actual=%d", expected.StateHash, actual.StateHash)
	}
	if len(expected.Positions) != len(actual.Positions) {
		return fmt.Errorf("snapshot length mismatch: expected=%d actual=%d", len(expected.Positions), len(actual.Positions))
	}
	expectedMap := make(map[string]PositionEntry, len(expected.Positions))
	for _, entry := range expected.Positions {
		expectedMap[entry.Symbol] = entry
	}
	for _, entry := range actual.Positions {
		want, ok := expectedMap[entry.Symbol]
		if !ok {
			return fmt.Errorf("snapshot missing symbol: %s", entry.Symbol)
		}
		if want.Qty != entry.Qty {
			return fmt.Errorf("snapshot qty mismatch: symbol=%s expected=%f actual=%f", entry.Symbol, want.Qty, entry.Qty)
		}
	}
	return nil
}
