package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/core"
	"main/internal/mdg"
	"main/internal/obs"
	"main/internal/ops"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	runs := flag.Int("runs", 100, "Number of seeded runs")
	workers := flag.Int("workers", 4, "Parallel workers")
	baseSeed := flag.Uint64("base-seed", 1, "First tape seed; run i uses base+i")
	candles := flag.Int("candles", 2000, "Candles per run")
	timeoutRate := flag.Float64("timeout-rate", 0.05, "Fault injection: ack drop rate")
	dupRate := flag.Float64("dup-rate", 0.05, "Fault injection: duplicate fill rate")
	dropRate := flag.Float64("drop-rate", 0.05, "Fault injection: dropped fill rate")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address, empty to disable")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	cfg.Chaos.TimeoutRate = *timeoutRate
	cfg.Chaos.DupFillRate = *dupRate
	cfg.Chaos.DropFillRate = *dropRate
	if err := cfg.Chaos.Validate(); err != nil {
		log.Fatalf("invalid fault rates: %v", err)
	}

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "engine/stress",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	metrics := obs.NewMetrics()
	seeds := make(chan uint64, *runs)
	for i := 0; i < *runs; i++ {
		seeds <- *baseSeed + uint64(i)
	}
	close(seeds)

	var wg sync.WaitGroup
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seed := range seeds {
				if ctx.Err() != nil {
					return
				}
				stressRun(ctx, cfg, seed, *candles, metrics)
			}
		}()
	}
	wg.Wait()

	snap := metrics.Snapshot()
	logs.Infof("runs completed=%d diverged=%d", snap.RunsCompleted, snap.RunsDiverged)
	logs.Infof("events=%d commands=%d orders=%d halts=%d", snap.EventsReduced, snap.CommandsEmitted, snap.OrdersPlaced, snap.Halts)
	logs.Infof("reduce latency avg=%s max=%s", snap.ReduceLatency.Avg, snap.ReduceLatency.Max)

	if snap.RunsDiverged > 0 {
		os.Exit(1)
	}
}

// stressRun executes the same seeded run twice under fault injection
// and counts a divergence when the state hashes differ. Determinism
// under chaos is the property being stressed; a single mismatch is a
// bug.
func stressRun(ctx context.Context, cfg ops.FileConfig, seed uint64, candles int, metrics *obs.Metrics) {
	run := func() (core.Result, error) {
		runCfg := cfg
		runCfg.ChaosSeed = seed
		c, err := core.New(runCfg, metrics)
		if err != nil {
			return core.Result{}, err
		}
		c.Feed(mdg.NewGenerator(mdg.Config{
			Symbol:     cfg.Symbol,
			Seed:       seed,
			TimerEvery: 30,
		}).Tape(candles)...)
		return c.Run(ctx)
	}

	first, err := run()
	if err != nil {
		logs.Errorf("seed %d: %v", seed, err)
		return
	}
	second, err := run()
	if err != nil {
		logs.Errorf("seed %d: %v", seed, err)
		return
	}

	if first.FinalHash != second.FinalHash {
		metrics.IncRunDiverged()
		logs.Errorf("seed %d diverged: %d vs %d", seed, first.FinalHash, second.FinalHash)
	}
}
