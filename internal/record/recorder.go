// Package record persists run history to SQLite so finished
// simulations can be inspected and compared offline.
package record

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/event"
	"github.com/erisproject/eris-sub002/internal/sim"

	_ "modernc.org/sqlite"
)

// Recorder writes one run's history: the run row, per-period stats,
// every executed trade and each market's end-of-period state. A single
// goroutine owns it; event handlers fire during end-of-period dispatch
// on the coordinator.
type Recorder struct {
	db    *sql.DB
	log   *zap.Logger
	runID string
}

// New opens (or creates) the database and initializes the schema. WAL
// mode keeps the file readable while a run is writing to it.
func New(path string, log *zap.Logger) (*Recorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	r := &Recorder{db: db, log: log, runID: uuid.NewString()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error { return r.db.Close() }

// RunID returns the identifier rows of this run are keyed by.
func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id       TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		seed     INTEGER NOT NULL,
		workers  INTEGER NOT NULL,
		started  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS periods (
		run_id     TEXT NOT NULL REFERENCES runs(id),
		period     INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		elapsed_us INTEGER NOT NULL,
		PRIMARY KEY (run_id, period)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id   TEXT NOT NULL REFERENCES runs(id),
		period   INTEGER NOT NULL,
		market   INTEGER NOT NULL,
		buyer    INTEGER NOT NULL,
		quantity REAL NOT NULL,
		price    REAL NOT NULL,
		payment  REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_run_period ON trades(run_id, period);

	CREATE TABLE IF NOT EXISTS market_state (
		run_id   TEXT NOT NULL REFERENCES runs(id),
		period   INTEGER NOT NULL,
		market   INTEGER NOT NULL,
		price    REAL NOT NULL,
		sold     REAL NOT NULL,
		stockout INTEGER NOT NULL,
		PRIMARY KEY (run_id, period, market)
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// StartRun inserts the run row. Seeds are stored as their two's
// complement int64 image; readers cast back.
func (r *Recorder) StartRun(scenario string, seed uint64, workers int) error {
	_, err := r.db.Exec(
		`INSERT INTO runs (id, scenario, seed, workers, started) VALUES (?, ?, ?, ?, ?)`,
		r.runID, scenario, int64(seed), workers,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Observe subscribes the recorder to the simulation's trade stream.
// Handlers run during end-of-period dispatch, so the period read off
// the simulation is the period the trade happened in.
func (r *Recorder) Observe(s *sim.Simulation) {
	event.Subscribe(s.Bus(), func(ev econ.TradeExecuted) {
		_, err := r.db.Exec(
			`INSERT INTO trades (run_id, period, market, buyer, quantity, price, payment)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.runID, int64(s.Period()), int64(ev.Market), int64(ev.Buyer),
			ev.Quantity, ev.Price, ev.Payment,
		)
		if err != nil {
			r.log.Warn("record trade", zap.Error(err))
		}
	})
}

// RecordPeriod persists one period's stats and each market's state.
func (r *Recorder) RecordPeriod(stats sim.RunStats, markets []*econ.Market) error {
	_, err := r.db.Exec(
		`INSERT INTO periods (run_id, period, iterations, elapsed_us) VALUES (?, ?, ?, ?)`,
		r.runID, int64(stats.Period), stats.IntraIterations, stats.Elapsed.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert period %d: %w", stats.Period, err)
	}
	for _, m := range markets {
		stockout := 0
		if m.WasStockout() {
			stockout = 1
		}
		_, err := r.db.Exec(
			`INSERT INTO market_state (run_id, period, market, price, sold, stockout)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.runID, int64(stats.Period), int64(m.ID()),
			m.CurrentPrice(), m.Sold(), stockout,
		)
		if err != nil {
			return fmt.Errorf("insert market state %d: %w", m.ID(), err)
		}
	}
	return nil
}
