package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"main/internal/core"
	"main/internal/data"
	"main/internal/mdg"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/recorder"
	"main/internal/schema"
	"main/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	csvPath := flag.String("csv", "", "Candle CSV file (ts,open,high,low,close,volume)")
	jsonPath := flag.String("json", "", "Candle JSON file with decimal prices")
	seed := flag.Uint64("seed", 1, "Synthetic tape seed when no candle file is given")
	candles := flag.Int("candles", 1000, "Synthetic tape length")
	journalPath := flag.String("journal", "", "Record the event stream to this file")
	label := flag.String("label", "backtest", "Run label for the run store")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	events, err := loadEvents(cfg, *csvPath, *jsonPath, *seed, *candles)
	if err != nil {
		log.Fatalf("event load failed: %v", err)
	}

	metrics := obs.NewMetrics()
	c, err := core.New(cfg, metrics)
	if err != nil {
		log.Fatalf("core init failed: %v", err)
	}
	if *journalPath != "" {
		w, err := recorder.NewWriter(*journalPath, cfg.Journal.Fsync)
		if err != nil {
			log.Fatalf("journal open failed: %v", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				logs.Errorf("journal close: %v", err)
			}
		}()
		c.WithJournal(w)
	}

	c.Feed(events...)
	result, err := c.Run(ctx)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	logs.Infof("events=%d commands=%d fills=%d", result.Events, result.Commands, result.Fills)
	logs.Infof("equity=%.2f realized=%.4f drawdown=%.4f", result.Equity, result.RealizedPnL, result.MaxDrawdown)
	logs.Infof("hash=%d halted=%v reason=%q", result.FinalHash, result.Halted, result.HaltReason)

	snap := metrics.Snapshot()
	logs.Infof("reduce latency avg=%s max=%s", snap.ReduceLatency.Avg, snap.ReduceLatency.Max)

	if cfg.Storage.Enabled {
		if err := persist(cfg.Storage, *label, cfg.Symbol, *seed, result); err != nil {
			log.Fatalf("run store failed: %v", err)
		}
	}
}

func loadEvents(cfg ops.FileConfig, csvPath, jsonPath string, seed uint64, candles int) ([]schema.Event, error) {
	switch {
	case csvPath != "":
		rows, err := data.LoadCSV(csvPath, cfg.Symbol)
		if err != nil {
			return nil, err
		}
		return withTimers(rows), nil
	case jsonPath != "":
		rows, err := data.LoadJSON(jsonPath, cfg.Symbol)
		if err != nil {
			return nil, err
		}
		return withTimers(rows), nil
	default:
		return mdg.NewGenerator(mdg.Config{
			Symbol:     cfg.Symbol,
			Seed:       seed,
			TimerEvery: 30,
		}).Tape(candles), nil
	}
}

// withTimers interleaves a timer tick every 30 candles so staleness
// checks and drift aggregation run during file-driven backtests too.
func withTimers(candles []schema.MarketCandle) []schema.Event {
	events := make([]schema.Event, 0, len(candles)+len(candles)/30)
	for i, candle := range candles {
		events = append(events, candle)
		if (i+1)%30 == 0 {
			events = append(events, schema.SysTimer{Ts: candle.Ts + 1, Name: "backtest"})
		}
	}
	return events
}

func persist(cfg storage.Config, label, symbol string, seed uint64, result core.Result) error {
	store, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Save(&storage.Run{
		Label:       label,
		Symbol:      symbol,
		Seed:        seed,
		Events:      result.Events,
		Commands:    result.Commands,
		Fills:       result.Fills,
		FinalEquity: result.Equity,
		RealizedPnL: result.RealizedPnL,
		MaxDrawdown: result.MaxDrawdown,
		Halted:      result.Halted,
		HaltReason:  result.HaltReason,
		StateHash:   result.FinalHash,
	})
}
