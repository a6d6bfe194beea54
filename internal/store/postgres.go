package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/willregister/admin-cli/internal/db"
	"github.com/willregister/admin-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS upload_jobs (
	id           TEXT PRIMARY KEY,
	firm_id      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	job          JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS wills (
	id             TEXT PRIMARY KEY,
	testator_name  TEXT NOT NULL,
	dob            TEXT NOT NULL,
	address        TEXT NOT NULL,
	postcode       TEXT NOT NULL,
	will_location  TEXT NOT NULL,
	solicitor_name TEXT,
	will_date      TEXT,
	executor_name  TEXT,
	firm_id        TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'active',
	source         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_upload_jobs_status ON upload_jobs(status);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_firm ON upload_jobs(firm_id);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_completed ON upload_jobs(completed_at);
CREATE INDEX IF NOT EXISTS idx_wills_testator ON wills(testator_name, dob);
CREATE INDEX IF NOT EXISTS idx_wills_firm ON wills(firm_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.UploadJob) (*model.UploadJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal job")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO upload_jobs (id, firm_id, status, job, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.FirmID, string(job.Status), string(jobJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.UploadJob, error) {
	var jobJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT job FROM upload_jobs WHERE id = $1`, jobID).Scan(&jobJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: job not found: %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get job")
	}

	var job model.UploadJob
	if err := json.Unmarshal(jobJSON, &job); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal job")
	}
	return &job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.UploadJob, error) {
	query := `SELECT job FROM upload_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.FirmID != "" {
		args = append(args, filter.FirmID)
		query += ` AND firm_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

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
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.UploadJob
	for rows.Next() {
		var jobJSON []byte
		if err := rows.Scan(&jobJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job row")
		}
		var job model.UploadJob
		if err := json.Unmarshal(jobJSON, &job); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal job row")
		}
		jobs = append(jobs, job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, update JobUpdate) (*model.UploadJob, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(job, update); err != nil {
		return nil, err
	}
	if err := s.writeJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *PostgresStore) AppendActivity(ctx context.Context, jobID string, message string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.ActivityLog = append(job.ActivityLog, model.ActivityEntry{
		Timestamp: time.Now().UTC(),
		Message:   message,
	})
	return s.writeJob(ctx, job)
}

func (s *PostgresStore) CancelJob(ctx context.Context, jobID string) (*model.UploadJob, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := cancelInPlace(job); err != nil {
		return nil, err
	}
	if err := s.writeJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *PostgresStore) RequeueJob(ctx context.Context, jobID string) (*model.UploadJob, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := requeueInPlace(job); err != nil {
		return nil, err
	}
	if err := s.writeJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *PostgresStore) CleanupJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM upload_jobs
		 WHERE status IN ('complete', 'failed', 'cancelled') AND completed_at <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: cleanup jobs")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) writeJob(ctx context.Context, job *model.UploadJob) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal job")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE upload_jobs SET status = $1, job = $2, updated_at = $3, completed_at = $4 WHERE id = $5`,
		string(job.Status), string(jobJSON), time.Now().UTC(), job.CompletedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: job not found: %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) SaveWill(ctx context.Context, will model.Will) (*model.Will, error) {
	if will.ID == "" {
		will.ID = uuid.New().String()
	}
	if will.CreatedAt.IsZero() {
		will.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO wills (id, testator_name, dob, address, postcode, will_location,
		                    solicitor_name, will_date, executor_name, firm_id, status, source, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		will.ID, will.TestatorName, will.DOB, will.Address, will.Postcode, will.WillLocation,
		will.SolicitorName, will.WillDate, will.ExecutorName, will.FirmID,
		string(will.Status), string(will.Source), will.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert will")
	}
	return &will, nil
}

func (s *PostgresStore) CountWills(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wills`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count wills")
}

func (s *PostgresStore) FindDuplicateWill(ctx context.Context, testatorName, dob string) (*model.Will, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, testator_name, dob, address, postcode, will_location,
		        COALESCE(solicitor_name, ''), COALESCE(will_date, ''), COALESCE(executor_name, ''),
		        firm_id, status, source, created_at
		 FROM wills WHERE testator_name = $1 AND dob = $2 LIMIT 1`,
		testatorName, dob,
	)

	var w model.Will
	err := row.Scan(&w.ID, &w.TestatorName, &w.DOB, &w.Address, &w.Postcode, &w.WillLocation,
		&w.SolicitorName, &w.WillDate, &w.ExecutorName, &w.FirmID, &w.Status, &w.Source, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find duplicate will")
	}
	return &w, nil
}
