package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kapsule/studio-api/internal/ledger"
	"github.com/kapsule/studio-api/internal/models"
	"github.com/kapsule/studio-api/internal/prompt"
	"github.com/kapsule/studio-api/internal/ratelimit"
	"github.com/kapsule/studio-api/internal/services"
	"github.com/kapsule/studio-api/internal/storage"
	"github.com/kapsule/studio-api/internal/worker"
)

const (
	serviceName    = "Kapsule Studio API"
	serviceVersion = "1.0.0"

	// Generous ceiling; uploaded segments are typically a few MB.
	maxUploadBytes = 100 << 20
)

// allowedAudioTypes is the upload MIME allow-list. WAV variants are included
// because browser-side extraction produces WAV.
var allowedAudioTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/m4a":   true,
}

type Handler struct {
	ledger       ledger.Ledger
	store        storage.ArtifactStore
	ffmpeg       *services.FFmpegService
	orchestrator *worker.Orchestrator
	limiter      ratelimit.Limiter

	// enhancer is nil when no AI backend is configured; enhancerEnabled
	// gates default use, the per-request force flag overrides it.
	enhancer        services.Enhancer
	enhancerEnabled bool
}

func NewHandler(l ledger.Ledger, store storage.ArtifactStore, ffmpeg *services.FFmpegService,
	orch *worker.Orchestrator, limiter ratelimit.Limiter, enhancer services.Enhancer, enhancerEnabled bool) *Handler {
	return &Handler{
		ledger:          l,
		store:           store,
		ffmpeg:          ffmpeg,
		orchestrator:    orch,
		limiter:         limiter,
		enhancer:        enhancer,
		enhancerEnabled: enhancerEnabled,
	}
}

// Health handles GET /
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// Generate handles POST /api/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.AudioURL == "" {
		respondError(w, http.StatusBadRequest, "audio_url is required")
		return
	}
	if req.Duration == "" {
		req.Duration = "8s"
	}

	// A custom prompt wins; otherwise build one from the creative options.
	finalPrompt := req.Prompt
	if finalPrompt == "" {
		finalPrompt = prompt.Build(prompt.Options{
			Genre:             req.Genre,
			VisualStyle:       req.VisualStyle,
			CameraMovement:    req.CameraMovement,
			Mood:              req.Mood,
			Subject:           req.Subject,
			Setting:           req.Setting,
			Lighting:          req.Lighting,
			CameraType:        req.CameraType,
			Duration:          req.Duration,
			CreativeIntensity: req.CreativeIntensity,
			Extra:             req.Extra,
		})
	}

	job := &models.Job{
		Prompt:         finalPrompt,
		AudioURL:       req.AudioURL,
		Duration:       req.Duration,
		Genre:          req.Genre,
		VisualStyle:    req.VisualStyle,
		CameraMovement: req.CameraMovement,
		Mood:           req.Mood,
		Subject:        req.Subject,
		Setting:        req.Setting,
		Extra:          req.Extra,
	}

	jobID, err := h.ledger.Create(r.Context(), job)
	if err != nil {
		log.Printf("[API] Failed to create job: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	log.Printf("[API] Created job %s (genre=%s, duration=%s)", jobID, req.Genre, req.Duration)

	// The workflow outlives this request.
	go h.orchestrator.Run(jobID, job)

	respondJSON(w, http.StatusOK, models.GenerateResponse{JobID: jobID})
}

// GetResult handles GET /api/result/{job_id}
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := h.ledger.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Job not found")
			return
		}
		log.Printf("[API] Failed to load job %s: %v", jobID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	respondJSON(w, http.StatusOK, models.JobStatusResponse{
		Status:   job.Status,
		VideoURL: job.VideoURL,
		Error:    job.Error,
	})
}

// UploadAudio handles POST /api/upload-audio
//
// Accepts a multipart audio file, optionally trims it to a [start, end]
// window when both form fields are present, and stores it under the audio
// folder with a uuid-prefixed object name.
func (h *Handler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if base, _, found := strings.Cut(contentType, ";"); found {
		contentType = strings.TrimSpace(base)
	}
	if !allowedAudioTypes[contentType] {
		respondError(w, http.StatusBadRequest,
			"Invalid file type. Allowed types: audio/mpeg, audio/wav, audio/x-wav, audio/m4a")
		return
	}

	if header.Size > maxUploadBytes {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size: %dMB", maxUploadBytes/(1024*1024)))
		return
	}

	log.Printf("[API] Uploading audio: %s (%d bytes, %s)", header.Filename, header.Size, contentType)

	objectName := storage.AudioFolder + fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(header.Filename))

	start, end, extract, err := parseSegmentWindow(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var audioRef string
	if extract {
		audioRef, err = h.uploadSegment(r, file, header.Filename, objectName, contentType, start, end)
	} else {
		audioRef, err = h.store.UploadReader(r.Context(), file, objectName, contentType)
	}
	if err != nil {
		log.Printf("[API] Audio upload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	log.Printf("[API] Uploaded audio to %s", audioRef)
	respondJSON(w, http.StatusOK, models.AudioUploadResponse{AudioURL: audioRef})
}

// uploadSegment writes the upload to disk, trims it with ffmpeg and stores
// the trimmed copy.
func (h *Handler) uploadSegment(r *http.Request, file io.Reader, filename, objectName, contentType string, start, end float64) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".mp3"
	}
	id := uuid.New().String()
	rawPath := h.ffmpeg.TempPath(fmt.Sprintf("upload_%s%s", id, ext))
	segmentPath := h.ffmpeg.TempPath(fmt.Sprintf("segment_%s%s", id, ext))
	defer h.ffmpeg.Cleanup(rawPath, segmentPath)

	out, err := os.Create(rawPath)
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	out.Close()

	if err := h.ffmpeg.ExtractSegment(r.Context(), rawPath, segmentPath, start, end); err != nil {
		return "", err
	}

	return h.store.Upload(r.Context(), segmentPath, objectName, contentType)
}

// parseSegmentWindow reads the optional start/end form fields. Both must be
// present to trigger extraction, and the window must be positive.
func parseSegmentWindow(r *http.Request) (start, end float64, extract bool, err error) {
	startStr := r.FormValue("start")
	endStr := r.FormValue("end")
	if startStr == "" && endStr == "" {
		return 0, 0, false, nil
	}
	if startStr == "" || endStr == "" {
		return 0, 0, false, fmt.Errorf("start and end must be provided together")
	}

	start, err = strconv.ParseFloat(startStr, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid start value %q", startStr)
	}
	end, err = strconv.ParseFloat(endStr, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid end value %q", endStr)
	}
	if start < 0 || end <= start {
		return 0, 0, false, fmt.Errorf("invalid segment window [%g, %g]", start, end)
	}
	return start, end, true, nil
}

// PromptPreview handles POST /api/prompt/preview
func (h *Handler) PromptPreview(w http.ResponseWriter, r *http.Request) {
	allowed, err := h.limiter.Allow(r.Context(), ratelimit.ClientKey(r))
	if err != nil {
		// Fail open: a broken limiter backend must not take previews down.
		log.Printf("[API] Rate limiter error (allowing request): %v", err)
	} else if !allowed {
		respondError(w, http.StatusTooManyRequests, "Too many preview requests. Please wait a minute and try again.")
		return
	}

	var req models.PromptPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	basePrompt := prompt.Build(prompt.Options{
		Genre:             req.Genre,
		VisualStyle:       req.VisualStyle,
		CameraMovement:    req.CameraMovement,
		Mood:              req.Mood,
		Subject:           req.Subject,
		Setting:           req.Setting,
		Lighting:          req.Lighting,
		CameraType:        req.CameraType,
		Duration:          req.Duration,
		CreativeIntensity: req.CreativeIntensity,
		Extra:             req.Extra,
	})

	if h.enhancer != nil && (h.enhancerEnabled || req.Force) {
		enhanced, err := h.enhancer.Enhance(r.Context(), basePrompt, req.Options())
		if err == nil && enhanced != "" {
			respondJSON(w, http.StatusOK, models.PromptPreviewResponse{
				EnhancedPrompt: enhanced,
				Source:         models.PromptSourceEnhanced,
			})
			return
		}
		log.Printf("[API] Prompt enhancement failed, falling back to rule-based: %v", err)
	}

	respondJSON(w, http.StatusOK, models.PromptPreviewResponse{
		EnhancedPrompt: basePrompt,
		Source:         models.PromptSourceRuleBased,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
