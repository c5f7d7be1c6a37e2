package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/roadsafe/crash-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	accuracy   REAL,
	error      TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	ended_at   DATETIME
);

CREATE TABLE IF NOT EXISTS run_stages (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	detail      TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS accuracy_history (
	id          TEXT PRIMARY KEY,
	run_id      TEXT,
	accuracy    REAL NOT NULL,
	measured_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS model_registry (
	id            TEXT PRIMARY KEY,
	run_id        TEXT,
	info          TEXT NOT NULL,
	registered_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_accuracy_history_measured_at ON accuracy_history(measured_at);
CREATE INDEX IF NOT EXISTS idx_model_registry_registered_at ON model_registry(registered_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, accuracy *float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, accuracy = ?, ended_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), accuracy, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, ended_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), cause, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, accuracy, error, started_at, ended_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, accuracy, error, started_at, ended_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreateStage(ctx context.Context, runID, name string) (*model.Stage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.StageStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert stage for run %s", runID)
	}

	return &model.Stage{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.StageStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishStage(ctx context.Context, stageID string, status model.StageStatus, detail string) error {
	// The duration is computed here rather than in SQL: the driver binds
	// time.Time values in a format sqlite's date functions cannot parse.
	var started time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM run_stages WHERE id = ?`, stageID,
	).Scan(&started)
	if err == sql.ErrNoRows {
		return eris.Errorf("stage not found: %s", stageID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish stage %s", stageID)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_stages SET status = ?, detail = ?, duration_ms = ? WHERE id = ?`,
		string(status), detail, time.Since(started).Milliseconds(), stageID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish stage %s", stageID)
	}
	return checkRowsAffected(res, "stage", stageID)
}

func (s *SQLiteStore) ListStages(ctx context.Context, runID string) ([]model.Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, detail, duration_ms, started_at
		 FROM run_stages WHERE run_id = ? ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list stages for run %s", runID)
	}
	defer rows.Close()

	var stages []model.Stage
	for rows.Next() {
		var st model.Stage
		var detail sql.NullString
		if err := rows.Scan(&st.ID, &st.RunID, &st.Name, &st.Status, &detail, &st.DurationMS, &st.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stage")
		}
		st.Detail = detail.String
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "sqlite: list stages iterate")
}

func (s *SQLiteStore) RecordAccuracy(ctx context.Context, runID string, accuracy float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accuracy_history (id, run_id, accuracy, measured_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), nullable(runID), accuracy, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: record accuracy")
}

func (s *SQLiteStore) LatestAccuracy(ctx context.Context) (*AccuracyPoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, accuracy, measured_at FROM accuracy_history
		 ORDER BY measured_at DESC, id DESC LIMIT 1`,
	)

	var p AccuracyPoint
	var runID sql.NullString
	err := row.Scan(&p.ID, &runID, &p.Accuracy, &p.MeasuredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest accuracy")
	}
	p.RunID = runID.String
	return &p, nil
}

func (s *SQLiteStore) ListAccuracy(ctx context.Context, limit int) ([]AccuracyPoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, accuracy, measured_at FROM accuracy_history
		 ORDER BY measured_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list accuracy")
	}
	defer rows.Close()

	var points []AccuracyPoint
	for rows.Next() {
		var p AccuracyPoint
		var runID sql.NullString
		if err := rows.Scan(&p.ID, &runID, &p.Accuracy, &p.MeasuredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan accuracy point")
		}
		p.RunID = runID.String
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: list accuracy iterate")
}

func (s *SQLiteStore) RegisterModel(ctx context.Context, runID string, info model.ModelInfo) (*ModelRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal model info")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO model_registry (id, run_id, info, registered_at) VALUES (?, ?, ?, ?)`,
		id, nullable(runID), string(infoJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: register model")
	}

	return &ModelRecord{ID: id, RunID: runID, Info: info, RegisteredAt: now}, nil
}

func (s *SQLiteStore) ListModels(ctx context.Context, limit int) ([]ModelRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, info, registered_at FROM model_registry
		 ORDER BY registered_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list models")
	}
	defer rows.Close()

	var records []ModelRecord
	for rows.Next() {
		var rec ModelRecord
		var runID sql.NullString
		var infoJSON string
		if err := rows.Scan(&rec.ID, &runID, &infoJSON, &rec.RegisteredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan model record")
		}
		rec.RunID = runID.String
		if err := json.Unmarshal([]byte(infoJSON), &rec.Info); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal model info")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list models iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var accuracy sql.NullFloat64
	var errMsg sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Kind, &r.Status, &accuracy, &errMsg, &r.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if accuracy.Valid {
		r.Accuracy = &accuracy.Float64
	}
	r.Error = errMsg.String
	if endedAt.Valid {
		t := endedAt.Time
		r.EndedAt = &t
	}
	return &r, nil
}
