package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/kapsule/studio-api/internal/models"
)

// Postgres is the production Ledger.
//
// Expected schema:
//
//	CREATE TABLE jobs (
//	    id              UUID PRIMARY KEY,
//	    status          TEXT NOT NULL,
//	    prompt          TEXT NOT NULL,
//	    audio_url       TEXT NOT NULL,
//	    duration        TEXT NOT NULL,
//	    genre           TEXT NOT NULL DEFAULT '',
//	    visual_style    TEXT NOT NULL DEFAULT '',
//	    camera_movement TEXT NOT NULL DEFAULT '',
//	    mood            TEXT NOT NULL DEFAULT '',
//	    subject         TEXT NOT NULL DEFAULT '',
//	    setting         TEXT NOT NULL DEFAULT '',
//	    extra           TEXT NOT NULL DEFAULT '',
//	    video_url       TEXT,
//	    error           TEXT,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    completed_at    TIMESTAMPTZ
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db}, nil
}

func (l *Postgres) Close() error {
	return l.db.Close()
}

func (l *Postgres) Create(ctx context.Context, job *models.Job) (string, error) {
	id := uuid.New().String()
	query := `
		INSERT INTO jobs (
			id, status, prompt, audio_url, duration,
			genre, visual_style, camera_movement, mood, subject, setting, extra
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := l.db.ExecContext(
		ctx, query,
		id, models.JobStatusQueued, job.Prompt, job.AudioURL, job.Duration,
		job.Genre, job.VisualStyle, job.CameraMovement, job.Mood,
		job.Subject, job.Setting, job.Extra,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	return id, nil
}

// UpdateStatus advances a job in a single guarded statement: the WHERE clause
// encodes the legal transitions, so a terminal job or an unknown id simply
// matches zero rows.
func (l *Postgres) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, videoURL, errDetail string) error {
	now := time.Now().UTC()

	var query string
	var args []interface{}

	switch status {
	case models.JobStatusComplete:
		query = `
			UPDATE jobs
			SET status = $1, updated_at = $2, completed_at = $2, video_url = $3
			WHERE id = $4 AND status IN ('queued', 'processing')
		`
		args = []interface{}{status, now, videoURL, jobID}
	case models.JobStatusError:
		query = `
			UPDATE jobs
			SET status = $1, updated_at = $2, completed_at = $2, error = $3
			WHERE id = $4 AND status IN ('queued', 'processing')
		`
		args = []interface{}{status, now, errDetail, jobID}
	case models.JobStatusProcessing:
		query = `
			UPDATE jobs
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status = 'queued'
		`
		args = []interface{}{status, now, jobID}
	default:
		log.Printf("[Ledger] Warning: refusing transition to %s for job %s", status, jobID)
		return nil
	}

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Printf("[Ledger] Warning: status update to %s for job %s matched no rows (unknown id or terminal job)", status, jobID)
	}

	return nil
}

func (l *Postgres) Get(ctx context.Context, jobID string) (*models.Job, error) {
	query := `
		SELECT
			id, status, prompt, audio_url, duration,
			genre, visual_style, camera_movement, mood, subject, setting, extra,
			video_url, error, created_at, updated_at, completed_at
		FROM jobs
		WHERE id = $1
	`

	job := &models.Job{}
	err := l.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.Status, &job.Prompt, &job.AudioURL, &job.Duration,
		&job.Genre, &job.VisualStyle, &job.CameraMovement, &job.Mood,
		&job.Subject, &job.Setting, &job.Extra,
		&job.VideoURL, &job.Error, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

var _ Ledger = (*Postgres)(nil)
