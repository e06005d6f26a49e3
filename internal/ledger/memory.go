package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapsule/studio-api/internal/models"
)

// Memory is an in-process Ledger for development and tests.
type Memory struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewMemory() *Memory {
	return &Memory{jobs: make(map[string]*models.Job)}
}

func (l *Memory) Create(ctx context.Context, job *models.Job) (string, error) {
	now := time.Now().UTC()
	stored := *job
	stored.ID = uuid.New().String()
	stored.Status = models.JobStatusQueued
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.VideoURL = nil
	stored.Error = nil
	stored.CompletedAt = nil

	l.mu.Lock()
	l.jobs[stored.ID] = &stored
	l.mu.Unlock()

	return stored.ID, nil
}

func (l *Memory) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, videoURL, errDetail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := l.jobs[jobID]
	if !ok {
		log.Printf("[Ledger] Warning: status update for unknown job %s ignored", jobID)
		return nil
	}

	if !job.Status.CanTransitionTo(status) {
		log.Printf("[Ledger] Warning: invalid transition %s -> %s for job %s ignored", job.Status, status, jobID)
		return nil
	}

	now := time.Now().UTC()
	job.Status = status
	job.UpdatedAt = now

	switch status {
	case models.JobStatusComplete:
		job.CompletedAt = &now
		if videoURL != "" {
			job.VideoURL = &videoURL
		}
	case models.JobStatusError:
		job.CompletedAt = &now
		if errDetail != "" {
			job.Error = &errDetail
		}
	}

	return nil
}

func (l *Memory) Get(ctx context.Context, jobID string) (*models.Job, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	job, ok := l.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	clone := *job
	return &clone, nil
}

var _ Ledger = (*Memory)(nil)
