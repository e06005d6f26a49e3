package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kapsule/studio-api/internal/ledger"
	"github.com/kapsule/studio-api/internal/models"
	"github.com/kapsule/studio-api/internal/ratelimit"
	"github.com/kapsule/studio-api/internal/services"
	"github.com/kapsule/studio-api/internal/storage"
	"github.com/kapsule/studio-api/internal/worker"
)

type fakeGenerator struct {
	dir string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt, duration, jobID string) (string, error) {
	path := filepath.Join(g.dir, fmt.Sprintf("veo_video_%s.mp4", jobID))
	return path, os.WriteFile(path, []byte("video"), 0644)
}

type fakeAligner struct {
	dir string
}

func (a *fakeAligner) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	return os.WriteFile(outputPath, []byte("merged"), 0644)
}

func (a *fakeAligner) TempPath(filename string) string {
	return filepath.Join(a.dir, filename)
}

func (a *fakeAligner) Cleanup(paths ...string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

type fakeEnhancer struct {
	mu     sync.Mutex
	calls  int
	result string
	err    error
}

func (e *fakeEnhancer) Enhance(ctx context.Context, basePrompt string, options map[string]string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.result, e.err
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	ledger  *ledger.Memory
	store   *storage.Memory
}

func newTestEnv(t *testing.T, enhancer services.Enhancer, enhancerEnabled bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	l := ledger.NewMemory()
	store := storage.NewMemory("test-bucket")
	ffmpeg := services.NewFFmpegService(dir)
	orch := worker.NewOrchestrator(l, store, &fakeGenerator{dir: dir}, &fakeAligner{dir: dir})
	limiter := ratelimit.NewMemory(20, time.Minute)

	h := NewHandler(l, store, ffmpeg, orch, limiter, enhancer, enhancerEnabled)
	return &testEnv{
		handler: h,
		router:  NewRouter(h, RouterConfig{}),
		ledger:  l,
		store:   store,
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, false)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "healthy" || body["service"] == "" {
		t.Errorf("body = %v", body)
	}
}

func TestGenerateCreatesJob(t *testing.T) {
	env := newTestEnv(t, nil, false)
	audioRef := env.store.Put("audio/track.mp3", []byte("audio"))

	payload := fmt.Sprintf(`{
		"genre": "Hip-Hop", "visualStyle": "Cinematic", "cameraMovement": "Drone",
		"mood": "Energetic", "subject": "a dancer", "setting": "rooftop at dusk",
		"duration": "8s", "creativeIntensity": "Balanced",
		"audio_url": %q
	}`, audioRef)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp models.GenerateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.JobID == "" {
		t.Fatalf("response = %s, err = %v", rec.Body, err)
	}

	job, err := env.ledger.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Prompt == "" {
		t.Error("prompt was not built from creative options")
	}
	if !strings.Contains(job.Prompt, "a dancer") {
		t.Errorf("built prompt does not mention the subject: %q", job.Prompt)
	}

	// The detached workflow should drive the job terminal.
	deadline := time.After(5 * time.Second)
	for {
		job, _ = env.ledger.Get(context.Background(), resp.JobID)
		if job.Status.IsTerminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never reached a terminal status (status=%s)", job.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
	if job.Status != models.JobStatusComplete {
		t.Fatalf("status = %s (error: %v)", job.Status, job.Error)
	}
}

func TestGenerateCustomPromptWins(t *testing.T) {
	env := newTestEnv(t, nil, false)
	audioRef := env.store.Put("audio/track.mp3", []byte("audio"))

	payload := fmt.Sprintf(`{"prompt": "exactly this prompt", "audio_url": %q}`, audioRef)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(payload)))

	var resp models.GenerateResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	job, err := env.ledger.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Prompt != "exactly this prompt" {
		t.Errorf("prompt = %q", job.Prompt)
	}
}

func TestGenerateMissingAudioURL(t *testing.T) {
	env := newTestEnv(t, nil, false)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"genre":"Pop"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetResultUnknownJob(t *testing.T) {
	env := newTestEnv(t, nil, false)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/result/no-such-job", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetResultStatuses(t *testing.T) {
	env := newTestEnv(t, nil, false)
	ctx := context.Background()

	jobID, _ := env.ledger.Create(ctx, &models.Job{Prompt: "p", AudioURL: "gs://b/a.mp3", Duration: "8s"})
	env.ledger.UpdateStatus(ctx, jobID, models.JobStatusProcessing, "", "")
	env.ledger.UpdateStatus(ctx, jobID, models.JobStatusComplete, "https://signed.example/v.mp4", "")

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/result/"+jobID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp models.JobStatusResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != models.JobStatusComplete {
		t.Errorf("status = %s", resp.Status)
	}
	if resp.VideoURL == nil || *resp.VideoURL != "https://signed.example/v.mp4" {
		t.Errorf("video_url = %v", resp.VideoURL)
	}
	if resp.Error != nil {
		t.Errorf("error = %v", *resp.Error)
	}
}

func multipartAudio(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	part.Write(data)

	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestUploadAudio(t *testing.T) {
	env := newTestEnv(t, nil, false)

	body, contentType := multipartAudio(t, "track.mp3", "audio/mpeg", []byte("mp3 bytes"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload-audio", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp models.AudioUploadResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if !strings.HasPrefix(resp.AudioURL, "gs://test-bucket/audio/") {
		t.Errorf("audio_url = %q", resp.AudioURL)
	}
	if !strings.HasSuffix(resp.AudioURL, "_track.mp3") {
		t.Errorf("audio_url %q does not keep the original filename", resp.AudioURL)
	}

	object := strings.TrimPrefix(resp.AudioURL, "gs://test-bucket/")
	if data, ok := env.store.Get(object); !ok || string(data) != "mp3 bytes" {
		t.Errorf("stored bytes = %q, ok = %v", data, ok)
	}
}

func TestUploadAudioRejectsBadMIME(t *testing.T) {
	env := newTestEnv(t, nil, false)

	body, contentType := multipartAudio(t, "movie.mp4", "video/mp4", []byte("nope"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upload-audio", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid file type") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestUploadAudioRejectsHalfSegmentWindow(t *testing.T) {
	env := newTestEnv(t, nil, false)

	body, contentType := multipartAudio(t, "track.wav", "audio/wav", []byte("wav"), map[string]string{"start": "3.5"})
	req := httptest.NewRequest(http.MethodPost, "/api/upload-audio", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPromptPreviewRuleBased(t *testing.T) {
	env := newTestEnv(t, nil, false)

	payload := `{"genre": "Jazz", "visualStyle": "Anime", "subject": "a saxophonist", "duration": "15s"}`
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/prompt/preview", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp models.PromptPreviewResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Source != models.PromptSourceRuleBased {
		t.Errorf("source = %q", resp.Source)
	}
	if !strings.Contains(resp.EnhancedPrompt, "a saxophonist") {
		t.Errorf("prompt does not mention the subject: %q", resp.EnhancedPrompt)
	}
}

func TestPromptPreviewEnhanced(t *testing.T) {
	enh := &fakeEnhancer{result: "a sweeping cinematic rework"}
	env := newTestEnv(t, enh, true)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/prompt/preview", strings.NewReader(`{"genre":"Pop"}`)))

	var resp models.PromptPreviewResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Source != models.PromptSourceEnhanced || resp.EnhancedPrompt != "a sweeping cinematic rework" {
		t.Errorf("resp = %+v", resp)
	}
	if enh.calls != 1 {
		t.Errorf("enhancer calls = %d", enh.calls)
	}
}

func TestPromptPreviewEnhancerFallsBack(t *testing.T) {
	enh := &fakeEnhancer{err: fmt.Errorf("backend down")}
	env := newTestEnv(t, enh, true)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/prompt/preview", strings.NewReader(`{"genre":"Pop"}`)))

	var resp models.PromptPreviewResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Source != models.PromptSourceRuleBased || resp.EnhancedPrompt == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestPromptPreviewForceOverridesDisabled(t *testing.T) {
	enh := &fakeEnhancer{result: "forced rework"}
	env := newTestEnv(t, enh, false)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/prompt/preview", strings.NewReader(`{"genre":"Pop","force":true}`)))

	var resp models.PromptPreviewResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Source != models.PromptSourceEnhanced {
		t.Errorf("source = %q, want enhanced", resp.Source)
	}
}

func TestPromptPreviewRateLimit(t *testing.T) {
	env := newTestEnv(t, nil, false)

	var lastCode int
	for i := 0; i < 21; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/prompt/preview", strings.NewReader(`{"genre":"Pop"}`))
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		lastCode = rec.Code
		if i < 20 && rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("21st request: status = %d, want 429", lastCode)
	}

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/api/prompt/preview", strings.NewReader(`{"genre":"Pop"}`))
	req.RemoteAddr = "198.51.100.7:9999"
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("other client: status = %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t, nil, false)
	router := NewRouter(env.handler, RouterConfig{BackendAPIKey: "secret-key"})

	// Health stays public.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "wrong", http.StatusForbidden},
		{"valid key", "X-API-Key", "secret-key", http.StatusNotFound},
		{"valid bearer", "Authorization", "Bearer secret-key", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/result/nope", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
