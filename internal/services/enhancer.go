package services

import "context"

// Enhancer rewrites a rule-based prompt into a richer cinematic one using an
// LLM. Enhancement is best-effort everywhere it is used: callers fall back to
// the base prompt when Enhance errors.
type Enhancer interface {
	Enhance(ctx context.Context, basePrompt string, options map[string]string) (string, error)
}

// Shared creative-director brief for every enhancer backend.
const enhancerInstructions = "Act as a senior music-video creative director. Compose a single coherent cinematic prompt for a video generation model. " +
	"Always enforce vertical 9:16 orientation. Never include on-screen text, watermarks, phone UIs, or logos. " +
	"Guarantee professional music-video quality: cinematic composition, dynamic motion, realistic lens depth, and engaging transitions. " +
	"Ensure the camera is always moving, tracking, cutting, or panning; avoid static frames. " +
	"Output MUST be a single paragraph of plain text (no markdown)."
