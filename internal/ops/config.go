package ops

import (
	"encoding/json"
	"os"

	"github.com/yanun0323/errors"

	"main/internal/chaos"
	"main/internal/drift"
	"main/internal/engine"
	"main/internal/exec"
	"main/internal/storage"
)

// FileConfig mirrors the JSON config layout. Absent sections fall back
// to defaults so a minimal config stays minimal.
type FileConfig struct {
	StartingCash float64          `json:"startingCash"`
	Symbol       string           `json:"symbol"`
	Engine       engine.Config    `json:"engine"`
	Drift        DriftConfig      `json:"drift"`
	Chaos        chaos.Profile    `json:"chaos"`
	ChaosSeed    uint64           `json:"chaosSeed"`
	Paper        exec.PaperConfig `json:"paper"`
	Breaker      BreakerConfig    `json:"breaker"`
	Journal      JournalConfig    `json:"journal"`
	Storage      storage.Config   `json:"storage"`
}

// DriftConfig sizes the drift windows and severity cutoffs.
type DriftConfig struct {
	BaselineSize int              `json:"baselineSize"`
	RecentSize   int              `json:"recentSize"`
	Thresholds   drift.Thresholds `json:"thresholds"`
}

// BreakerConfig tunes the venue circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32 `json:"failureThreshold"`
}

// JournalConfig controls event journaling.
type JournalConfig struct {
	Path  string `json:"path"`
	Fsync bool   `json:"fsync"`
}

// Default returns the config used when no file is given.
func Default() FileConfig {
	return FileConfig{
		StartingCash: 10_000,
		Symbol:       "BTCUSDT",
		Engine:       engine.DefaultConfig(),
		Drift: DriftConfig{
			BaselineSize: 100,
			RecentSize:   20,
			Thresholds:   drift.DefaultThresholds(),
		},
		Chaos:   chaos.Disabled(),
		Paper:   exec.PaperConfig{FeeRate: 0.0004, LatencyMs: 50},
		Breaker: BreakerConfig{FailureThreshold: 5},
	}
}

// Load reads a JSON config file over the defaults. An empty path
// returns the defaults untouched.
func Load(path string) (FileConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, errors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configs the engine cannot run.
func (cfg FileConfig) Validate() error {
	if cfg.StartingCash <= 0 {
		return errors.New("startingCash must be > 0")
	}
	if cfg.Symbol == "" {
		return errors.New("symbol is empty")
	}
	if cfg.Engine.PositionSize <= 0 {
		return errors.New("engine.positionSize must be > 0")
	}
	if cfg.Drift.BaselineSize <= 0 || cfg.Drift.RecentSize <= 0 {
		return errors.New("drift window sizes must be > 0")
	}
	if cfg.Drift.RecentSize > cfg.Drift.BaselineSize {
		return errors.New("drift.recentSize must not exceed drift.baselineSize")
	}
	if err := cfg.Chaos.Validate(); err != nil {
		return errors.Wrap(err, "chaos")
	}
	return nil
}

// Tracker builds the drift tracker this config describes.
func (cfg DriftConfig) Tracker() *drift.Tracker {
	return drift.NewTrackerWithThresholds(cfg.BaselineSize, cfg.RecentSize, cfg.Thresholds)
}
