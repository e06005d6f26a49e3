package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kapsule/studio-api/internal/api"
	"github.com/kapsule/studio-api/internal/config"
	"github.com/kapsule/studio-api/internal/ledger"
	"github.com/kapsule/studio-api/internal/ratelimit"
	"github.com/kapsule/studio-api/internal/services"
	"github.com/kapsule/studio-api/internal/storage"
	"github.com/kapsule/studio-api/internal/worker"
)

func main() {
	log.Println("Starting Kapsule Studio API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// Job ledger: Postgres when configured, in-memory otherwise
	var jobLedger ledger.Ledger
	if cfg.DatabaseURL != "" {
		pg, err := ledger.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		jobLedger = pg
		log.Println("Job ledger: Postgres")
	} else {
		jobLedger = ledger.NewMemory()
		log.Println("Job ledger: in-memory (jobs lost on restart)")
	}

	// Artifact store: GCS when a bucket is configured
	var store storage.ArtifactStore
	if cfg.GCSBucketName != "" {
		gcs, err := storage.NewGCS(ctx, cfg.GCSBucketName)
		if err != nil {
			log.Fatalf("Failed to initialize GCS storage: %v", err)
		}
		defer gcs.Close()
		store = gcs
		log.Printf("Artifact store: GCS bucket %s", cfg.GCSBucketName)
	} else {
		store = storage.NewMemory("local")
		log.Println("Artifact store: in-memory (dev mode)")
	}

	ffmpegSvc := services.NewFFmpegService(cfg.TempDir)

	// Video generation client
	if cfg.GCPProjectID == "" {
		log.Fatal("GCP_PROJECT_ID is required for video generation")
	}
	veoSvc, err := services.NewVeoService(ctx, services.VeoConfig{
		ProjectID:    cfg.GCPProjectID,
		Location:     cfg.GCPRegion,
		Model:        cfg.VeoModel,
		Bucket:       cfg.GCSBucketName,
		PollInterval: cfg.VeoPollInterval,
		PollTimeout:  cfg.VeoPollTimeout,
		TempDir:      cfg.TempDir,
	}, store)
	if err != nil {
		log.Fatalf("Failed to initialize Veo service: %v", err)
	}
	log.Printf("Veo video generation enabled (model: %s)", cfg.VeoModel)

	orchestrator := worker.NewOrchestrator(jobLedger, store, veoSvc, ffmpegSvc)

	// Prompt enhancer — optional AI rewrite of the rule-based prompt.
	// A configured key makes the enhancer available even when PROMPT_ENHANCER
	// is off, so per-request force can invoke it.
	var enhancer services.Enhancer
	switch {
	case cfg.PromptEnhancer == "openai" || (cfg.PromptEnhancer == "off" && cfg.OpenAIKey != ""):
		enhancer = services.NewOpenAIEnhancer(cfg.OpenAIKey, "")
		log.Println("Prompt enhancer: OpenAI")
	case cfg.PromptEnhancer == "gemini" || (cfg.PromptEnhancer == "off" && cfg.GeminiKey != ""):
		enhancer = services.NewGeminiEnhancer(cfg.GeminiKey, "")
		log.Println("Prompt enhancer: Gemini")
	default:
		log.Println("Prompt enhancer: disabled")
	}

	// Preview rate limiter: Redis when configured, in-process otherwise
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedis(cfg.RedisURL, cfg.PreviewRateLimit, time.Minute)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
		log.Println("Rate limiter: Redis")
	} else {
		limiter = ratelimit.NewMemory(cfg.PreviewRateLimit, time.Minute)
		log.Println("Rate limiter: in-memory")
	}

	handler := api.NewHandler(jobLedger, store, ffmpegSvc, orchestrator, limiter, enhancer, cfg.PromptEnhancer != "off")

	corsOrigins := cfg.CorsAllowedOrigins
	if cfg.FrontendURL != "" {
		if corsOrigins != "" {
			corsOrigins = strings.Join([]string{corsOrigins, cfg.FrontendURL}, ",")
		} else {
			corsOrigins = cfg.FrontendURL
		}
	}

	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: corsOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
