package recorder

import (
	"database/sql"
	"fmt"
	"math/big"
	"sync"
	"time"

	"YieldRouter/internal/model"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database. Amounts are
// stored as decimal strings in base units.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode lets dashboards read while the engine writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("module", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("SQLite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS harvests (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			kind             TEXT NOT NULL,
			strategy         TEXT NOT NULL,
			profit           TEXT,
			loss             TEXT,
			debt_payment     TEXT,
			debt_before      TEXT,
			debt_after       TEXT,
			debt_outstanding TEXT,
			idle             TEXT,
			shares           TEXT,
			price_per_share  TEXT,
			investment_value TEXT,
			total_assets     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_harvests_ts ON harvests(timestamp)`,

		`CREATE TABLE IF NOT EXISTS param_changes (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			strategy  TEXT NOT NULL,
			name      TEXT NOT NULL,
			old_bps   INTEGER,
			new_bps   INTEGER,
			caller    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_param_changes_ts ON param_changes(timestamp)`,

		`CREATE TABLE IF NOT EXISTS failures (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			strategy  TEXT NOT NULL,
			kind      TEXT NOT NULL,
			error     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_ts ON failures(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordHarvest(rep *model.HarvestReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rep.At
	if ts.IsZero() {
		ts = time.Now()
	}
	pos := rep.Position
	_, err := r.db.Exec(`INSERT INTO harvests
		(timestamp, kind, strategy, profit, loss, debt_payment,
		 debt_before, debt_after, debt_outstanding,
		 idle, shares, price_per_share, investment_value, total_assets)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ts.Unix(), string(rep.Kind), rep.Strategy,
		str(rep.Return.Profit), str(rep.Return.Loss), str(rep.Return.DebtPayment),
		str(rep.DebtBefore), str(rep.DebtAfter), str(rep.DebtOutstanding),
		str(pos.Idle), str(pos.Shares), str(pos.PricePerShare), str(pos.ValueOfInvestment), str(pos.TotalAssets),
	)
	return err
}

func (r *SQLiteRecorder) RecordParamChange(evt *ParamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO param_changes
		(timestamp, strategy, name, old_bps, new_bps, caller)
		VALUES (?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Strategy, evt.Name, int64(evt.OldBps), int64(evt.NewBps), evt.Caller,
	)
	return err
}

func (r *SQLiteRecorder) RecordFailure(evt *FailureEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO failures
		(timestamp, strategy, kind, error)
		VALUES (?,?,?,?)`,
		time.Now().Unix(), evt.Strategy, string(evt.Kind), evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("Closing SQLite recorder")
	return r.db.Close()
}

func str(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
