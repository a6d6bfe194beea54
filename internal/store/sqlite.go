package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/willregister/admin-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS upload_jobs (
	id           TEXT PRIMARY KEY,
	firm_id      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	job          TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
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
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_upload_jobs_status ON upload_jobs(status);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_firm ON upload_jobs(firm_id);
CREATE INDEX IF NOT EXISTS idx_upload_jobs_completed ON upload_jobs(completed_at);
CREATE INDEX IF NOT EXISTS idx_wills_testator ON wills(testator_name, dob);
CREATE INDEX IF NOT EXISTS idx_wills_firm ON wills(firm_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.UploadJob) (*model.UploadJob, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal job")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO upload_jobs (id, firm_id, status, job, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.FirmID, string(job.Status), string(jobJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.UploadJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT job FROM upload_jobs WHERE id = ?`, jobID)

	var jobJSON string
	err := row.Scan(&jobJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: job not found: %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	var job model.UploadJob
	if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal job")
	}
	return &job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.UploadJob, error) {
	query := `SELECT job FROM upload_jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.FirmID != "" {
		query += ` AND firm_id = ?`
		args = append(args, filter.FirmID)
	}
	query += ` ORDER BY created_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.UploadJob
	for rows.Next() {
		var jobJSON string
		if err := rows.Scan(&jobJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job row")
		}
		var job model.UploadJob
		if err := json.Unmarshal([]byte(jobJSON), &job); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal job row")
		}
		jobs = append(jobs, job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, jobID string, update JobUpdate) (*model.UploadJob, error) {
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

func (s *SQLiteStore) AppendActivity(ctx context.Context, jobID string, message string) error {
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

func (s *SQLiteStore) CancelJob(ctx context.Context, jobID string) (*model.UploadJob, error) {
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

func (s *SQLiteStore) RequeueJob(ctx context.Context, jobID string) (*model.UploadJob, error) {
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

func (s *SQLiteStore) CleanupJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM upload_jobs
		 WHERE status IN ('complete', 'failed', 'cancelled') AND completed_at <= ?`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: cleanup jobs")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: cleanup rows affected")
}

// writeJob persists the full job document and keeps the indexed columns in
// step with it.
func (s *SQLiteStore) writeJob(ctx context.Context, job *model.UploadJob) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal job")
	}

	var completedAt any
	if job.CompletedAt != nil {
		completedAt = *job.CompletedAt
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE upload_jobs SET status = ?, job = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(job.Status), string(jobJSON), time.Now().UTC(), completedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", job.ID)
	}
	return checkRowsAffected(res, "job", job.ID)
}

func (s *SQLiteStore) SaveWill(ctx context.Context, will model.Will) (*model.Will, error) {
	if will.ID == "" {
		will.ID = uuid.New().String()
	}
	if will.CreatedAt.IsZero() {
		will.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wills (id, testator_name, dob, address, postcode, will_location,
		                    solicitor_name, will_date, executor_name, firm_id, status, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		will.ID, will.TestatorName, will.DOB, will.Address, will.Postcode, will.WillLocation,
		will.SolicitorName, will.WillDate, will.ExecutorName, will.FirmID,
		string(will.Status), string(will.Source), will.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert will")
	}
	return &will, nil
}

func (s *SQLiteStore) CountWills(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wills`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count wills")
}

func (s *SQLiteStore) FindDuplicateWill(ctx context.Context, testatorName, dob string) (*model.Will, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, testator_name, dob, address, postcode, will_location,
		        solicitor_name, will_date, executor_name, firm_id, status, source, created_at
		 FROM wills WHERE testator_name = ? AND dob = ? LIMIT 1`,
		testatorName, dob,
	)

	var w model.Will
	var solicitor, willDate, executor sql.NullString
	err := row.Scan(&w.ID, &w.TestatorName, &w.DOB, &w.Address, &w.Postcode, &w.WillLocation,
		&solicitor, &willDate, &executor, &w.FirmID, &w.Status, &w.Source, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find duplicate will")
	}
	w.SolicitorName = solicitor.String
	w.WillDate = willDate.String
	w.ExecutorName = executor.String
	return &w, nil
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
