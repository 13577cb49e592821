package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/engine"
	"main/internal/schema"
)

func TestCaptureSortsPositions(t *testing.T) {
	s := engine.NewState(10_000)
	s.Portfolio.Positions["ETHUSDT"] = engine.Position{Qty: 1.5, EntryPrice: 2_000}
	s.Portfolio.Positions["BTCUSDT"] = engine.Position{Qty: 0.1, EntryPrice: 50_000}
	s.Seq = 42
	s.Now = 1_700_000_000_000

	snap := Capture(s)
	require.Len(t, snap.Positions, 2)
	assert.Equal(t, "BTCUSDT", snap.Positions[0].Symbol)
	assert.Equal(t, "ETHUSDT", snap.Positions[1].Symbol)
	assert.Equal(t, uint64(42), snap.LastSeq)
	assert.Equal(t, schema.Timestamp(1_700_000_000_000), snap.LastEventTs)
	assert.Equal(t, s.Hash(), snap.StateHash)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := engine.NewState(10_000)
	s.Portfolio.Positions["BTCUSDT"] = engine.Position{Qty: 0.1, EntryPrice: 50_000}
	snap := Capture(s)

	path := filepath.Join(t.TempDir(), "snapshots", "run.json")
	require.NoError(t, WriteSnapshot(path, snap))

	loaded, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestReadSnapshotMissingFile(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCompareSnapshots(t *testing.T) {
	s := engine.NewState(10_000)
	s.Portfolio.Positions["BTCUSDT"] = engine.Position{Qty: 0.1, EntryPrice: 50_000}
	a := Capture(s)
	b := a

	assert.NoError(t, CompareSnapshots(a, b))

	b.StateHash++
	assert.Error(t, CompareSnapshots(a, b))

	b = a
	b.Positions = []PositionEntry{{Symbol: "BTCUSDT", Qty: 0.2, EntryPrice: 50_000}}
	assert.Error(t, CompareSnapshots(a, b))

	b = a
	b.Positions = nil
	assert.Error(t, CompareSnapshots(a, b))
}
