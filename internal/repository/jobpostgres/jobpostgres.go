// Package jobpostgres keeps resize jobs in PostgreSQL
package jobpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/UnendingLoop/PhotoResizer/internal/model"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

const jobColumns = `job_uid, batch_uid, file_name, source_key, logo_key, result_key, settings, status, log, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var job model.Job
	err := row.Scan(&job.UID,
		&job.BatchID,
		&job.FileName,
		&job.SourceKey,
		&job.LogoKey,
		&job.ResultKey,
		&job.Settings,
		&job.Status,
		&job.Log,
		&job.CreatedAt,
		&job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateBatch inserts all jobs of one upload in a single transaction
func (p PostgresRepo) CreateBatch(ctx context.Context, jobs []model.Job) (err error) {
	tx, err := p.DB.Master.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			zlog.Logger.Error().Err(rbErr).Msg("Failed to rollback batch insert")
		}
	}()

	query := `INSERT INTO jobs (` + jobColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for i := range jobs {
		j := &jobs[i]
		if _, err = tx.ExecContext(ctx, query, j.UID, j.BatchID, j.FileName, j.SourceKey, j.LogoKey, j.ResultKey,
			j.Settings, j.Status, j.Log, j.CreatedAt, j.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert job %q: %w", j.UID, err)
		}
	}

	return tx.Commit()
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT ` + jobColumns + `
	FROM jobs
	WHERE job_uid = $1`

	job, err := scanJob(p.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrJobNotFound
		default:
			return nil, err // 500
		}
	}
	return job, nil
}

func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	// sort и order приходят только из белого списка сервиса
	query := fmt.Sprintf(`SELECT %s
	FROM jobs
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, jobColumns, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows, req.Limit)
}

// ListBatch returns the jobs of one batch in upload order
func (p PostgresRepo) ListBatch(ctx context.Context, batchID string) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + `
	FROM jobs
	WHERE batch_uid = $1
	ORDER BY created_at ASC, file_name ASC`

	rows, err := p.DB.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	jobs, err := collectJobs(rows, 0)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, model.ErrBatchNotFound
	}
	return jobs, nil
}

func collectJobs(rows *sql.Rows, capHint int) ([]model.Job, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
		}
	}()

	jobs := make([]model.Job, 0, capHint)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return jobs, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM jobs
	WHERE job_uid = $1`

	res, err := p.DB.Master.ExecContext(ctx, query, id)
	if err != nil {
		return err // 500
	}
	return requireAffected(res)
}

func (p PostgresRepo) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE jobs SET status = $1, updated_at = now() WHERE job_uid = $2`

	res, err := p.DB.Master.ExecContext(ctx, query, newStat, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SaveResult stores the result key and status and appends logLine to the job log
func (p PostgresRepo) SaveResult(ctx context.Context, job *model.Job, logLine string) error {
	query := `UPDATE jobs
	SET status = $1, result_key = $2, updated_at = $3, log = log || to_jsonb($4::text)
	WHERE job_uid = $5`

	res, err := p.DB.Master.ExecContext(ctx, query, job.Status, job.ResultKey, job.UpdatedAt, logLine, job.UID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (p PostgresRepo) MarkFailed(ctx context.Context, id string, logLine string) error {
	query := `UPDATE jobs
	SET status = $1, updated_at = now(), log = log || to_jsonb($2::text)
	WHERE job_uid = $3`

	res, err := p.DB.Master.ExecContext(ctx, query, model.StatusFailed, logLine, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// FetchOrphans claims jobs stuck in created/in_progress for more than 10 minutes:
// they are reset to created with a fresh updated_at, so the next tick skips them
func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `UPDATE jobs
	SET status = $1, updated_at = now()
	WHERE job_uid IN (
		SELECT job_uid
		FROM jobs
		WHERE status IN ($1, $2)
		AND updated_at < now() - interval '10 minutes'
		ORDER BY updated_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	)
	RETURNING job_uid`

	rows, err := p.DB.Master.QueryContext(ctx, query, model.StatusCreated, model.StatusInProgress, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("Error while closing *sql.Rows after scanning")
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return model.ErrJobNotFound // 404
	}
	return nil
}
