package models

import (
	"time"
)

// Enums
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// IsTerminal reports whether a job in this status can never transition again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// CanTransitionTo enforces the monotonic forward order
// queued → processing → {complete | error}. A terminal status never moves.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing || next == JobStatusComplete || next == JobStatusError
	case JobStatusProcessing:
		return next == JobStatusComplete || next == JobStatusError
	default:
		return false
	}
}

// Models

// Job is one user-initiated video generation request and its tracked lifecycle.
// VideoURL is set only on transition to complete; Error only on transition to
// error. Exactly one of the two is populated once the job is terminal.
type Job struct {
	ID             string     `json:"id"`
	Status         JobStatus  `json:"status"`
	Prompt         string     `json:"prompt"`
	AudioURL       string     `json:"audio_url"`
	Duration       string     `json:"duration"`
	Genre          string     `json:"genre"`
	VisualStyle    string     `json:"visualStyle"`
	CameraMovement string     `json:"cameraMovement"`
	Mood           string     `json:"mood"`
	Subject        string     `json:"subject"`
	Setting        string     `json:"setting"`
	Extra          string     `json:"extra"`
	VideoURL       *string    `json:"video_url,omitempty"`
	Error          *string    `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// DTOs for API requests/responses

// GenerateRequest supports two formats: a direct custom prompt, or structured
// creative options from which the backend builds an enhanced prompt.
type GenerateRequest struct {
	Genre             string `json:"genre"`
	VisualStyle       string `json:"visualStyle"`
	CameraMovement    string `json:"cameraMovement"`
	Mood              string `json:"mood"`
	Subject           string `json:"subject"`
	Setting           string `json:"setting"`
	Lighting          string `json:"lighting"`
	CameraType        string `json:"cameraType"`
	Duration          string `json:"duration"`
	CreativeIntensity string `json:"creativeIntensity"`
	Extra             string `json:"extra"`
	AudioURL          string `json:"audio_url"`
	Prompt            string `json:"prompt,omitempty"`
}

type GenerateResponse struct {
	JobID string `json:"job_id"`
}

type JobStatusResponse struct {
	Status   JobStatus `json:"status"`
	VideoURL *string   `json:"video_url,omitempty"`
	Error    *string   `json:"error,omitempty"`
}

type AudioUploadResponse struct {
	AudioURL string `json:"audio_url"`
}

// PromptPreviewRequest mirrors GenerateRequest minus the audio reference.
// Force invokes the AI enhancer even when it is disabled in config.
type PromptPreviewRequest struct {
	Genre             string `json:"genre"`
	VisualStyle       string `json:"visualStyle"`
	CameraMovement    string `json:"cameraMovement"`
	Mood              string `json:"mood"`
	Subject           string `json:"subject"`
	Setting           string `json:"setting"`
	Lighting          string `json:"lighting"`
	CameraType        string `json:"cameraType"`
	Duration          string `json:"duration"`
	CreativeIntensity string `json:"creativeIntensity"`
	Extra             string `json:"extra"`
	Force             bool   `json:"force,omitempty"`
}

const (
	PromptSourceRuleBased = "rule-based"
	PromptSourceEnhanced  = "enhanced"
)

type PromptPreviewResponse struct {
	EnhancedPrompt string `json:"enhanced_prompt"`
	Source         string `json:"source"`
}

// Options returns the creative options as a flat map, the shape handed to the
// AI prompt enhancer alongside the rule-based prompt.
func (r PromptPreviewRequest) Options() map[string]string {
	return map[string]string{
		"genre":             r.Genre,
		"visualStyle":       r.VisualStyle,
		"cameraMovement":    r.CameraMovement,
		"mood":              r.Mood,
		"subject":           r.Subject,
		"setting":           r.Setting,
		"lighting":          r.Lighting,
		"cameraType":        r.CameraType,
		"duration":          r.Duration,
		"creativeIntensity": r.CreativeIntensity,
		"extra":             r.Extra,
	}
}
