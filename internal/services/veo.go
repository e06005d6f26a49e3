package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/kapsule/studio-api/internal/storage"
)

// ---------------------------------------------------------------------------
// Veo 3.0 Video Generation Service
// Talks to the Vertex AI REST API: one predictLongRunning submission, then a
// fixed-interval poll of fetchPredictOperation until the operation is done or
// the overall timeout elapses. The generated artifact lands in GCS and is
// downloaded through the ArtifactStore.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel        = "veo-3.0-generate-001"
	defaultVeoPollInterval = 10 * time.Second
	defaultVeoPollTimeout  = 300 * time.Second

	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// VeoService submits prompts to the Veo long-running generation operation and
// resolves the produced artifact to a local file.
type VeoService struct {
	apiBase   string // https://{location}-aiplatform.googleapis.com/v1; overridable in tests
	projectID string
	location  string
	model     string
	bucket    string // bucket Veo parks raw output in (gs://{bucket}/veo-temp/)

	tokenSource  oauth2.TokenSource // nil = unauthenticated (tests)
	httpClient   *http.Client
	store        storage.ArtifactStore
	tempDir      string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// VeoConfig carries the knobs main.go reads from the environment.
type VeoConfig struct {
	ProjectID    string
	Location     string
	Model        string
	Bucket       string
	PollInterval time.Duration
	PollTimeout  time.Duration
	TempDir      string
}

// NewVeoService creates a Veo client authenticated with application default
// credentials.
func NewVeoService(ctx context.Context, cfg VeoConfig, store storage.ArtifactStore) (*VeoService, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	svc := newVeoService(cfg, store)
	svc.tokenSource = ts
	return svc, nil
}

// newVeoService builds the client without credentials; tests point apiBase at
// an httptest server.
func newVeoService(cfg VeoConfig, store storage.ArtifactStore) *VeoService {
	model := cfg.Model
	if model == "" {
		model = defaultVeoModel
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultVeoPollInterval
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = defaultVeoPollTimeout
	}

	return &VeoService{
		apiBase:      fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", cfg.Location),
		projectID:    cfg.ProjectID,
		location:     cfg.Location,
		model:        model,
		bucket:       cfg.Bucket,
		httpClient:   &http.Client{Timeout: 30 * time.Second}, // per-request timeout, not the poll cycle
		store:        store,
		tempDir:      cfg.TempDir,
		pollInterval: interval,
		pollTimeout:  timeout,
	}
}

// Wire types for the Vertex long-running predict protocol.

type veoPredictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoParameters struct {
	DurationSeconds int    `json:"durationSeconds"`
	StorageURI      string `json:"storageUri"`
	SampleCount     int    `json:"sampleCount"`
	AspectRatio     string `json:"aspectRatio"`
	Resolution      string `json:"resolution"`
	GenerateAudio   bool   `json:"generateAudio"`
}

type veoOperation struct {
	Name     string                 `json:"name"`
	Done     bool                   `json:"done"`
	Error    *veoOperationError     `json:"error,omitempty"`
	Response map[string]interface{} `json:"response,omitempty"`
}

type veoOperationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *VeoService) modelEndpoint() string {
	return fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s",
		s.apiBase, s.projectID, s.location, s.model)
}

func (s *VeoService) authorize(req *http.Request) error {
	req.Header.Set("Content-Type", "application/json")
	if s.tokenSource == nil {
		return nil
	}
	token, err := s.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}
	token.SetAuthHeader(req)
	return nil
}

// Generate runs one full generation: submit, poll to terminal, download.
// It returns the local path of the silent generated video. The local filename
// derives from the job id, so concurrent jobs never collide.
func (s *VeoService) Generate(ctx context.Context, prompt, duration, jobID string) (string, error) {
	durationSeconds, err := parseDurationSeconds(duration)
	if err != nil {
		return "", err
	}

	log.Printf("[Veo] [Job %s] Submitting generation (model=%s, duration=%ds, promptLen=%d)",
		jobID, s.model, durationSeconds, len(prompt))

	operationName, err := s.submit(ctx, prompt, durationSeconds)
	if err != nil {
		return "", err
	}

	log.Printf("[Veo] [Job %s] Operation started: %s", jobID, operationName)

	artifactRef, err := s.pollOperation(ctx, operationName, jobID)
	if err != nil {
		return "", err
	}

	localPath := filepath.Join(s.tempDir, fmt.Sprintf("veo_video_%s.mp4", jobID))
	if err := s.store.Download(ctx, artifactRef, localPath); err != nil {
		return "", fmt.Errorf("failed to download generated video: %w", err)
	}

	log.Printf("[Veo] [Job %s] Generated video downloaded to %s", jobID, localPath)
	return localPath, nil
}

// submit starts the long-running operation and returns its handle. A missing
// handle is fatal; there is no retry at this stage.
func (s *VeoService) submit(ctx context.Context, prompt string, durationSeconds int) (string, error) {
	body := veoPredictRequest{
		Instances: []veoInstance{{Prompt: prompt}},
		Parameters: veoParameters{
			DurationSeconds: durationSeconds,
			StorageURI:      fmt.Sprintf("gs://%s/veo-temp/", s.bucket),
			SampleCount:     1,
			AspectRatio:     "9:16", // portrait for social platforms
			Resolution:      "720p",
			GenerateAudio:   false, // the user's track is merged afterwards
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal predict request: %w", err)
	}

	url := s.modelEndpoint() + ":predictLongRunning"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create predict request: %w", err)
	}
	if err := s.authorize(req); err != nil {
		return "", err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Veo API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Veo API request failed: status %d: %s", resp.StatusCode, tailOf(string(respBody), 400))
	}

	var op veoOperation
	if err := json.Unmarshal(respBody, &op); err != nil {
		return "", fmt.Errorf("failed to parse Veo operation response: %w", err)
	}
	if op.Name == "" {
		return "", fmt.Errorf("no operation name returned from Veo API")
	}

	return op.Name, nil
}

// pollOperation polls fetchPredictOperation at a fixed interval until the
// operation is done or the overall timeout elapses. Individual poll failures
// (transport errors, non-200s) are logged and retried at the next tick; only
// the elapsed-time bound is fatal, and it is reported distinctly from a
// remote failure.
func (s *VeoService) pollOperation(ctx context.Context, operationName, jobID string) (string, error) {
	fetchURL := s.modelEndpoint() + ":fetchPredictOperation"
	deadline := time.Now().Add(s.pollTimeout)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	payload, err := json.Marshal(map[string]string{"operationName": operationName})
	if err != nil {
		return "", fmt.Errorf("failed to marshal poll request: %w", err)
	}

	// First poll fires immediately; fast operations don't pay a full
	// interval of latency.
	pollCount := 0
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("Veo operation timed out after %v (polled %d times)", s.pollTimeout, pollCount)
		}

		pollCount++
		op, err := s.fetchOperation(ctx, fetchURL, payload)
		switch {
		case err != nil:
			log.Printf("[Veo] [Job %s] Poll %d failed (will retry): %v", jobID, pollCount, err)
		case !op.Done:
			log.Printf("[Veo] [Job %s] Poll %d: still processing", jobID, pollCount)
		case op.Error != nil:
			// Done: an embedded error wins over any result payload.
			return "", fmt.Errorf("Veo operation failed: %s", op.Error.Message)
		default:
			ref, err := extractArtifactLocation(op.Response)
			if err != nil {
				return "", err
			}
			log.Printf("[Veo] [Job %s] Operation complete after %d polls: %s", jobID, pollCount, ref)
			return ref, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *VeoService) fetchOperation(ctx context.Context, url string, payload []byte) (*veoOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}
	if err := s.authorize(req); err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var op veoOperation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, fmt.Errorf("failed to parse poll response: %w", err)
	}
	return &op, nil
}

// extractArtifactLocation pulls the generated video's storage reference out
// of a completed operation response.
//
// Compatibility shim, not a guaranteed contract: the upstream response shape
// has shipped in at least three layouts ("videos" list, "predictions" list,
// singular "video" object), each addressing the reference as gcsUri, uri, or
// videoUri. All are tolerated here and nowhere else.
func extractArtifactLocation(response map[string]interface{}) (string, error) {
	if response == nil {
		return "", fmt.Errorf("no response in completed Veo operation")
	}

	var candidate interface{}
	if videos, ok := response["videos"].([]interface{}); ok && len(videos) > 0 {
		candidate = videos[0]
	} else if predictions, ok := response["predictions"].([]interface{}); ok && len(predictions) > 0 {
		candidate = predictions[0]
	} else if video, ok := response["video"]; ok {
		candidate = video
	}

	if candidate == nil {
		return "", fmt.Errorf("no videos in completed operation response (keys: %s)", joinKeys(response))
	}

	videoData, ok := candidate.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected video entry type %T in operation response", candidate)
	}

	for _, key := range []string{"gcsUri", "uri", "videoUri"} {
		if uri, ok := videoData[key].(string); ok && uri != "" {
			return uri, nil
		}
	}

	return "", fmt.Errorf("no storage URI in video response (keys: %s)", joinKeys(videoData))
}

func joinKeys(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return strings.Join(keys, ", ")
}

// parseDurationSeconds parses the request's duration string ("8s", "15s").
func parseDurationSeconds(duration string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(duration, "s"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q: expected a value like \"8s\"", duration)
	}
	return n, nil
}
