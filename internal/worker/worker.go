// Package worker runs the video generation workflow for a job from queued to
// a terminal status. Each job executes in its own goroutine on a context
// detached from the HTTP request that created it.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kapsule/studio-api/internal/ledger"
	"github.com/kapsule/studio-api/internal/models"
	"github.com/kapsule/studio-api/internal/storage"
)

const (
	// Upper bound on one full workflow: generation poll budget plus
	// transfers and the ffmpeg merge.
	workflowTimeout = 30 * time.Minute

	signedURLExpiry = time.Hour

	// Budget for the terminal ledger write after the workflow context is gone.
	terminalUpdateTimeout = 30 * time.Second
)

// Generator produces a silent video for a prompt and returns its local path.
type Generator interface {
	Generate(ctx context.Context, prompt, duration, jobID string) (string, error)
}

// Aligner merges a video and an audio track into an output whose duration
// matches the audio exactly.
type Aligner interface {
	Merge(ctx context.Context, videoPath, audioPath, outputPath string) error
	TempPath(filename string) string
	Cleanup(paths ...string)
}

// Orchestrator drives one job through generate, fetch, merge, upload and the
// terminal ledger transition.
type Orchestrator struct {
	ledger    ledger.Ledger
	store     storage.ArtifactStore
	generator Generator
	aligner   Aligner
	timeout   time.Duration
}

func NewOrchestrator(l ledger.Ledger, store storage.ArtifactStore, gen Generator, aligner Aligner) *Orchestrator {
	return &Orchestrator{
		ledger:    l,
		store:     store,
		generator: gen,
		aligner:   aligner,
		timeout:   workflowTimeout,
	}
}

// Run executes the workflow for a created job and always leaves it in a
// terminal status. Intended to be called as `go orch.Run(jobID, job)`.
func (o *Orchestrator) Run(jobID string, job *models.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	log.Printf("[Worker] [Job %s] Starting video generation workflow", jobID)

	videoURL, err := o.execute(ctx, jobID, job)

	// The terminal transition must land even when the workflow context is
	// what killed the run, so it runs on its own deadline.
	termCtx, termCancel := context.WithTimeout(context.WithoutCancel(ctx), terminalUpdateTimeout)
	defer termCancel()

	if err != nil {
		log.Printf("[Worker] [Job %s] Workflow failed: %v", jobID, err)
		if uerr := o.ledger.UpdateStatus(termCtx, jobID, models.JobStatusError, "", err.Error()); uerr != nil {
			log.Printf("[Worker] [Job %s] Failed to record error status: %v", jobID, uerr)
		}
		return
	}

	if uerr := o.ledger.UpdateStatus(termCtx, jobID, models.JobStatusComplete, videoURL, ""); uerr != nil {
		log.Printf("[Worker] [Job %s] Failed to record complete status: %v", jobID, uerr)
		return
	}

	log.Printf("[Worker] [Job %s] Workflow completed successfully", jobID)
}

// execute runs every step up to the terminal transition and returns the
// signed URL of the final video. Temp files are cleaned up on every path.
func (o *Orchestrator) execute(ctx context.Context, jobID string, job *models.Job) (string, error) {
	if err := o.ledger.UpdateStatus(ctx, jobID, models.JobStatusProcessing, "", ""); err != nil {
		return "", fmt.Errorf("failed to mark job processing: %w", err)
	}

	audioPath := o.aligner.TempPath(fmt.Sprintf("audio_%s.mp3", jobID))
	finalPath := o.aligner.TempPath(fmt.Sprintf("final_%s.mp4", jobID))

	// Generation dominates the wall clock; the audio fetch rides alongside it.
	var videoPath string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := o.generator.Generate(gctx, job.Prompt, job.Duration, jobID)
		if err != nil {
			return fmt.Errorf("video generation failed: %w", err)
		}
		videoPath = path
		return nil
	})
	g.Go(func() error {
		log.Printf("[Worker] [Job %s] Downloading audio %s", jobID, job.AudioURL)
		if err := o.store.Download(gctx, job.AudioURL, audioPath); err != nil {
			return fmt.Errorf("failed to download audio: %w", err)
		}
		return nil
	})

	defer func() {
		paths := []string{audioPath, finalPath}
		if videoPath != "" {
			paths = append(paths, videoPath)
		}
		o.aligner.Cleanup(paths...)
	}()

	if err := g.Wait(); err != nil {
		return "", err
	}

	log.Printf("[Worker] [Job %s] Merging video and audio", jobID)
	if err := o.aligner.Merge(ctx, videoPath, audioPath, finalPath); err != nil {
		return "", fmt.Errorf("failed to merge video and audio: %w", err)
	}

	log.Printf("[Worker] [Job %s] Uploading final video", jobID)
	objectName := storage.VideoFolder + fmt.Sprintf("final_%s.mp4", jobID)
	ref, err := o.store.Upload(ctx, finalPath, objectName, "video/mp4")
	if err != nil {
		return "", fmt.Errorf("failed to upload final video: %w", err)
	}

	videoURL, err := o.store.SignedURL(ctx, ref, signedURLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign video URL: %w", err)
	}

	return videoURL, nil
}
