package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/roadsafe/crash-cli/internal/model"
)

// pgxPool is the pool surface the store uses. Both *pgxpool.Pool and the
// pgxmock pool satisfy it.
type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":      `INSERT INTO runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
	"complete_run":    `UPDATE runs SET status = $1, accuracy = $2, ended_at = $3 WHERE id = $4`,
	"fail_run":        `UPDATE runs SET status = $1, error = $2, ended_at = $3 WHERE id = $4`,
	"get_run":         `SELECT id, kind, status, accuracy, error, started_at, ended_at FROM runs WHERE id = $1`,
	"insert_stage":    `INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"finish_stage":    `UPDATE run_stages SET status = $1, detail = $2, duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::BIGINT WHERE id = $3`,
	"record_accuracy": `INSERT INTO accuracy_history (id, run_id, accuracy, measured_at) VALUES ($1, $2, $3, $4)`,
	"latest_accuracy": `SELECT id, run_id, accuracy, measured_at FROM accuracy_history ORDER BY measured_at DESC, id DESC LIMIT 1`,
	"register_model":  `INSERT INTO model_registry (id, run_id, info, registered_at) VALUES ($1, $2, $3, $4)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	accuracy   DOUBLE PRECISION,
	error      TEXT,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_stages (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	detail      TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS accuracy_history (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT,
	accuracy    DOUBLE PRECISION NOT NULL,
	measured_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS model_registry (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id        TEXT,
	info          JSONB NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
CREATE INDEX IF NOT EXISTS idx_accuracy_history_measured_at ON accuracy_history(measured_at DESC);
CREATE INDEX IF NOT EXISTS idx_model_registry_registered_at ON model_registry(registered_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		id, string(kind), string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, accuracy *float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, accuracy = $2, ended_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), accuracy, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, ended_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), cause, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	return checkTag(tag, "run", runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, status, accuracy, error, started_at, ended_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, accuracy, error, started_at, ended_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) CreateStage(ctx context.Context, runID, name string) (*model.Stage, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_stages (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.StageStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert stage for run %s", runID)
	}

	return &model.Stage{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.StageStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) FinishStage(ctx context.Context, stageID string, status model.StageStatus, detail string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_stages SET status = $1, detail = $2, duration_ms = (EXTRACT(EPOCH FROM (now() - started_at)) * 1000)::BIGINT WHERE id = $3`,
		string(status), detail, stageID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish stage %s", stageID)
	}
	return checkTag(tag, "stage", stageID)
}

func (s *PostgresStore) ListStages(ctx context.Context, runID string) ([]model.Stage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, name, status, detail, duration_ms, started_at
		 FROM run_stages WHERE run_id = $1 ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list stages for run %s", runID)
	}
	defer rows.Close()

	var stages []model.Stage
	for rows.Next() {
		var st model.Stage
		var detail *string
		if err := rows.Scan(&st.ID, &st.RunID, &st.Name, &st.Status, &detail, &st.DurationMS, &st.StartedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stage")
		}
		if detail != nil {
			st.Detail = *detail
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "postgres: list stages iterate")
}

func (s *PostgresStore) RecordAccuracy(ctx context.Context, runID string, accuracy float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accuracy_history (id, run_id, accuracy, measured_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), nullable(runID), accuracy, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: record accuracy")
}

func (s *PostgresStore) LatestAccuracy(ctx context.Context) (*AccuracyPoint, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, run_id, accuracy, measured_at FROM accuracy_history ORDER BY measured_at DESC, id DESC LIMIT 1`,
	)

	var p AccuracyPoint
	var runID *string
	err := row.Scan(&p.ID, &runID, &p.Accuracy, &p.MeasuredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest accuracy")
	}
	if runID != nil {
		p.RunID = *runID
	}
	return &p, nil
}

func (s *PostgresStore) ListAccuracy(ctx context.Context, limit int) ([]AccuracyPoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, accuracy, measured_at FROM accuracy_history
		 ORDER BY measured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list accuracy")
	}
	defer rows.Close()

	var points []AccuracyPoint
	for rows.Next() {
		var p AccuracyPoint
		var runID *string
		if err := rows.Scan(&p.ID, &runID, &p.Accuracy, &p.MeasuredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan accuracy point")
		}
		if runID != nil {
			p.RunID = *runID
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: list accuracy iterate")
}

func (s *PostgresStore) RegisterModel(ctx context.Context, runID string, info model.ModelInfo) (*ModelRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal model info")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO model_registry (id, run_id, info, registered_at) VALUES ($1, $2, $3, $4)`,
		id, nullable(runID), string(infoJSON), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: register model")
	}

	return &ModelRecord{ID: id, RunID: runID, Info: info, RegisteredAt: now}, nil
}

func (s *PostgresStore) ListModels(ctx context.Context, limit int) ([]ModelRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, info, registered_at FROM model_registry
		 ORDER BY registered_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list models")
	}
	defer rows.Close()

	var records []ModelRecord
	for rows.Next() {
		var rec ModelRecord
		var runID *string
		var infoJSON []byte
		if err := rows.Scan(&rec.ID, &runID, &infoJSON, &rec.RegisteredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan model record")
		}
		if runID != nil {
			rec.RunID = *runID
		}
		if err := json.Unmarshal(infoJSON, &rec.Info); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal model info")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list models iterate")
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var accuracy *float64
	var errMsg *string
	var endedAt *time.Time

	if err := row.Scan(&r.ID, &r.Kind, &r.Status, &accuracy, &errMsg, &r.StartedAt, &endedAt); err != nil {
		return nil, err
	}

	r.Accuracy = accuracy
	if errMsg != nil {
		r.Error = *errMsg
	}
	r.EndedAt = endedAt
	return &r, nil
}
