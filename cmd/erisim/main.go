package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/erisproject/eris-sub002/internal/config"
	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/metrics"
	"github.com/erisproject/eris-sub002/internal/record"
	"github.com/erisproject/eris-sub002/internal/rng"
	"github.com/erisproject/eris-sub002/internal/scenario"
	"github.com/erisproject/eris-sub002/internal/scripting"
	"github.com/erisproject/eris-sub002/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              erisim  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m     discrete-period market simulator      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mscenario:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

// ── Main simulator logic ───────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/eris.toml"
	if p := os.Getenv("ERIS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Resolve seed and workers. The environment beats the config so
	// a run can be pinned without editing files.
	seed := cfg.Simulation.Seed
	if seed == 0 || os.Getenv(rng.SeedEnv) != "" {
		seed = rng.Seed()
	}
	workers := cfg.Simulation.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	s := sim.New(sim.Options{Workers: workers, Seed: seed, Log: log})

	// 4. Load the scenario and its policy scripts
	sc, err := scenario.Load(cfg.Scenario.Path)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	printBanner(sc.Name)
	printSection("world")

	var policies scenario.PolicySource
	if cfg.Scripts.Dir != "" {
		eng, err := scripting.NewEngine(cfg.Scripts.Dir, log)
		if err != nil {
			return fmt.Errorf("lua engine: %w", err)
		}
		defer eng.Close()
		policies = eng
	}

	w, err := sc.Build(s, policies)
	if err != nil {
		return fmt.Errorf("build scenario: %w", err)
	}
	printStat("goods", len(w.Goods))
	printStat("firms", len(w.Firms))
	printStat("markets", len(w.Markets))
	printStat("agents", len(w.Agents))
	printStat("workers", workers)

	markets := sortedMarkets(w)

	// 5. Optional run recording
	var rec *record.Recorder
	if cfg.Record.Enabled {
		rec, err = record.New(cfg.Record.Path, log)
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
		defer rec.Close()
		if err := rec.StartRun(sc.Name, seed, workers); err != nil {
			return err
		}
		rec.Observe(s)
		printOK(fmt.Sprintf("recording to %s (run %s)", cfg.Record.Path, rec.RunID()))
	}

	// 6. Optional Prometheus endpoint
	var mtr *metrics.Metrics
	if cfg.Metrics.Enabled {
		mtr = metrics.New()
		mtr.Observe(s)
		mux := http.NewServeMux()
		mux.Handle("/metrics", mtr.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
		printOK(fmt.Sprintf("metrics on http://%s/metrics", cfg.Metrics.Listen))
	}
	fmt.Println()

	// 7. Run periods until done or interrupted
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("run starting",
		zap.Uint64("periods", cfg.Simulation.Periods),
		zap.Uint64("seed", seed),
		zap.Int("workers", workers),
	)
	started := time.Now()

	for p := uint64(0); p < cfg.Simulation.Periods; p++ {
		select {
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			return nil
		default:
		}

		stats, err := s.Run()
		if err != nil {
			return fmt.Errorf("period %d: %w", s.Period(), err)
		}
		if rec != nil {
			if err := rec.RecordPeriod(stats, markets); err != nil {
				return fmt.Errorf("record period %d: %w", stats.Period, err)
			}
		}
		if mtr != nil {
			for name, m := range w.Markets {
				mtr.SetPrice(name, m.CurrentPrice())
			}
		}
	}

	log.Info("run complete",
		zap.Uint64("periods", s.Period()),
		zap.Duration("elapsed", time.Since(started)),
	)
	for name, a := range w.Agents {
		log.Info("agent outcome",
			zap.String("agent", name),
			zap.Float64("utility", a.RealizedUtility()),
		)
	}
	for _, m := range markets {
		log.Info("market outcome",
			zap.String("market", m.Name()),
			zap.Float64("price", m.CurrentPrice()),
			zap.Float64("sold", m.Sold()),
		)
	}
	return nil
}

func sortedMarkets(w *scenario.World) []*econ.Market {
	markets := make([]*econ.Market, 0, len(w.Markets))
	for _, m := range w.Markets {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID() < markets[j].ID() })
	return markets
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
