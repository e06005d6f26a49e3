// Package prompt turns structured creative options into detailed, cinematic
// prompts for the Veo video generation model. It supports both human
// performance and abstract visual-only modes, with music-video quality
// enforcement and style-specific negative clauses.
package prompt

import (
	"fmt"
	"strings"
)

// Genre descriptors
var genreDescriptors = map[string]string{
	"Pop":     "vibrant, saturated colors, clean visuals, high-energy editing, slick choreography, polished look",
	"Hip Hop": "urban landscapes, cinematic street style, dynamic camera angles, raw energy, story-driven visuals",
	"EDM":     "pulsating strobe lights, neon trails, abstract geometric patterns, visuals synced to the beat, futuristic aesthetic",
	"Rock":    "high-contrast lighting, raw performance energy, gritty textures, dynamic band shots, lens flares",
	"Lo-Fi":   "dreamy, nostalgic visuals, grainy 16mm film texture, soft focus, warm analog tones, lens imperfections",
	"House":   "stylish club atmosphere, vibrant dancefloor scenes, hypnotic repeating visuals, energetic dancers, seamless transitions",
	"R&B":     "moody, atmospheric lighting, intimate close-ups, smooth and soulful camera movements, luxurious textures",
	"Trap":    "dark, gritty urban environment, slow-motion sequences, intense close-ups, atmospheric smoke, neon-lit nights",
}

// Visual style descriptors, strengthened with medium-specific language so the
// model does not drift back to live-action footage for stylized requests.
var styleDescriptors = map[string]string{
	"Cinematic":       "shot on professional cinema cameras with anamorphic lenses, shallow depth of field, filmic motion blur, epic composition, theatrical color grading",
	"Anime":           "RENDERED AS ANIME ANIMATION with vibrant cel-shaded style, bold line work, expressive character designs, dynamic action sequences, stylized backgrounds, NOT photorealistic",
	"2D Illustration": "CREATED AS 2D HAND-DRAWN ANIMATION with illustrative style, textured brush strokes, flat color planes, artistic character design, NOT live-action, NOT photorealistic",
	"Trippy":          "psychedelic visual effects with kaleidoscopic patterns, liquid light distortions, surreal transformations, reality-bending warps, abstract flowing visuals",
	"Realistic CGI":   "high-end 3D CGI render with photorealistic textures, advanced ray tracing, seamless VFX integration, physically-based materials and lighting",
	"Grunge":          "raw underground aesthetic with shaky handheld camera, distressed film look, high contrast grain, lens dirt, underexposed moody atmosphere",
	"Vintage":         "authentic retro film aesthetic with Super 8 grain, faded color palette, natural light leaks, nostalgic warm tones, vintage aspect ratio",
}

// Camera movement descriptors for performance mode
var cameraDescriptors = map[string]string{
	"Dynamic Multi-Angle Cuts": "rapid cuts between multiple camera angles (wide establishing, medium action, tight details, overhead shots) changing every 1-2 seconds, creating energetic pacing with varied perspectives",
	"Beat-Matched Cuts":        "quick transitions synchronized to the track's beat, cutting between complementary angles (side, three-quarter, low angle, detail shots) with rhythmic precision",
	"Rapid Transitions":        "fast whip pans, snap zooms, and energetic reframes between angles, creating kinetic momentum and explosive visual pacing",
	"Multi-Angle Coverage":     "dynamic multi-camera edit, switching between establishing, mid, and close angles like a live performance",
	"Smooth Tracking Shot":     "a fluid lateral tracking movement following the subject's motion from the side or at dynamic angles, maintaining continuous flow",
	"Tracking":                 "a precise lateral tracking shot following the subject's movement from the side or at an angle, maintaining dynamic energy",
	"Orbit Around Subject":     "a smooth 360-degree orbital movement around the subject, revealing dimensional depth and perspective shifts",
	"Orbit":                    "a smooth 360-degree orbital movement around the subject, revealing dimensional depth and perspective shifts",
	"Slow Cinematic Pan":       "a deliberate, sweeping pan across the scene from varied angles (side, diagonal, overhead), revealing layers with cinematic grace",
	"Slow Pan":                 "a deliberate, sweeping pan across the scene from varied angles (side, diagonal, overhead), revealing layers with cinematic grace",
	"Dolly Push In":            "a forward dolly movement approaching the subject from an interesting angle (side approach, low angle rise, or diagonal), building intensity",
	"Dolly In":                 "a forward dolly movement approaching the subject from an interesting angle (side approach, low angle rise, or diagonal), building intensity",
	"Handheld Energy":          "raw, organic handheld camera movement with natural micro-shake, capturing intimate shifting perspectives (over-shoulder, side-tracking, close details)",
	"Handheld":                 "raw, organic handheld camera movement with natural micro-shake, capturing intimate shifting perspectives (over-shoulder, side-tracking, close details)",
	"Static Composed Frame":    "a carefully composed static frame from a creative angle (profile, three-quarter, low angle, high angle), using depth and compositional layers",
	"Static":                   "a carefully composed static frame from a creative angle (profile, three-quarter, low angle, high angle), using depth and compositional layers",
}

// Camera movement descriptors for visual-only mode
var cameraDescriptorsVisual = map[string]string{
	"Slow Zoom In":                   "a slow, deliberate zoom into the visual composition",
	"Floating Camera Drift":          "a floating drift through the visual space",
	"Seamless Orbit Through Scene":   "a seamless circular orbit through the scene",
	"Procedural Flow Through Shapes": "a procedural flow navigating through shapes",
	"Rapid Cut Between Visual Layers": "rapid cuts between visual layers",
	"Ethereal Glide":                 "an ethereal gliding motion through space",
	"Fractal Tunnel Movement":        "movement through a fractal tunnel effect",
}

// Mood descriptors
var moodDescriptors = map[string]string{
	"Energetic":   "fast-paced editing, vibrant color flashes, dynamic motion, and a sense of exhilarating movement",
	"Melancholic": "soft, diffused lighting, slow-motion details, a muted and desaturated color palette, and a focus on introspection",
	"Uplifting":   "bright, warm lighting, sweeping camera shots, saturated, optimistic colors, and a feeling of hope and positivity",
	"Dark":        "low-key lighting, deep shadows, a high-contrast and gritty look, creating a sense of mystery and tension",
	"Moody":       "atmospheric and evocative lighting, rich color tones, and a focus on emotion and feeling over narrative",
	"Euphoric":    "dreamlike visuals, lens flares, glowing particles, slow-motion expressions of joy, and an overwhelming sense of bliss",
}

// Subject descriptors, revised for dynamic movement and music-video quality
var subjectDescriptors = map[string]string{
	"None (Visual Only)":               "pure abstract visual elements with NO human performers, NO dancers, NO people, NO characters. Focus entirely on light, color, texture, patterns, and motion synchronized to the music",
	"Solo Dancer":                      "a solo dancer in mid-choreography, captured from dynamic angles (side profile, low angle, or three-quarter view), fluid athletic movement, expressive body language, NOT static posing",
	"Dance Duo":                        "two dancers in synchronized motion, interacting dynamically, captured from shifting camera perspectives, flowing movement between partners, NOT front-facing poses",
	"Group of Dancers":                 "multiple dancers in energetic choreography, captured mid-motion from varied angles (overhead, side tracking, diagonal), layered depth with staggered positioning, NOT lined up facing camera, NOT static group pose",
	"Singer Performing":                "a vocalist in expressive performance, captured from intimate angles (profile, over-shoulder, close-up on hands/face), emotional intensity, natural movement, NOT stiff studio portrait",
	"DJ Performing":                    "a DJ actively working the decks, hands in motion on equipment, captured from dynamic angles showing both performer and gear, energetic atmosphere, NOT static pose",
	"Band Performing":                  "band members mid-performance, instruments in motion, captured with depth showing multiple performers, raw energy, interactive dynamics between musicians, NOT staged lineup",
	"Fashion Model":                    "a fashion model in motion, walking, turning, or striking dynamic poses, captured from editorial angles, confident movement, cinematic framing, NOT catalog posing",
	"Abstract Performer":               "an abstract human form composed of light, particles, or energy, moving and transforming fluidly with the music",
	"Light Trails":                     "flowing light trails that pulse, curve, and streak through space in rhythm with the music",
	"Color Gradient Flow":              "smooth gradient transitions flowing dynamically across the frame with organic motion",
	"Liquid Motion":                    "fluid liquid forms morphing, splashing, and flowing with organic unpredictability",
	"Smoke or Ink in Water":            "ethereal smoke or ink dispersing in water with natural fluid dynamics",
	"Energy Particles":                 "glowing energy particles swirling, pulsing, and dancing through space",
	"Abstract Geometric Shapes":        "geometric shapes continuously transforming, rotating, and reconfiguring",
	"Floating 3D Objects":              "3D objects suspended in space, rotating and drifting with momentum",
	"Dynamic Waves or Ripples":         "rippling waves of color and light propagating through the frame",
	"Fractal or Kaleidoscope Patterns": "mesmerizing fractal patterns evolving and morphing organically",
	"Cosmic or Space Visuals":          "cosmic nebula, stellar phenomena, and celestial movement",
}

// Setting descriptors
var settingDescriptors = map[string]string{
	"Color Studio Background":      "a clean studio with colorful gradient backgrounds",
	"Abstract Space":               "a non-physical abstract dimension of light and color",
	"Gradient Wall Stage":          "a stage with dynamic gradient wall projections",
	"Geometric World":              "a world of geometric shapes and architectural forms",
	"Fluid Simulation Environment": "an environment of flowing fluid simulations",
	"Particle Universe":            "a universe filled with glowing particles",
	"Digital Landscape":            "a surreal digital landscape with neon elements",
	"Neon Tunnel":                  "a tunnel of pulsating neon lights",
	"Light Burst Field":            "a field of bursting light rays and beams",
	"Dreamscape Environment":       "a dreamlike surreal environment",
}

// Lighting style descriptors
var lightingDescriptors = map[string]string{
	"Soft Diffused":              "gentle, even lighting with smooth shadows and cinematic depth",
	"Monochromatic Studio Light": "single-color studio lighting with subtle reflections, warm tones, and professional-grade LED setup",
	"Neon / LED":                 "bold colored lights with reflections and glow effects",
	"Natural Sunlight":           "golden-hour sunlight with realistic shadows and soft atmospheric haze",
	"Studio Spotlights":          "bright, controlled lighting emphasizing the performer",
	"Dramatic Contrast":          "deep shadows and bold highlights creating visual tension",
	"Backlit Silhouette":         "the subject illuminated from behind, forming a striking outline",
}

// Camera type descriptors
var cameraTypeDescriptors = map[string]string{
	"35mm Anamorphic":    "a cinematic 35mm anamorphic lens with elegant bokeh",
	"24mm Wide Angle":    "a wide 24mm lens capturing spatial depth",
	"50mm Prime":         "a crisp, natural 50mm perspective",
	"Telephoto 85mm":     "an 85mm lens compressing space dramatically",
	"Handheld Camcorder": "raw handheld feel with organic movements",
	"Drone Shot":         "aerial drone perspective emphasizing motion",
}

// Fixed directive boilerplate injected into every prompt.
const (
	cinematicDirective = "The video must have professional music-video quality with cinematic composition, dynamic motion, realistic camera depth, soft lighting, and visually engaging transitions. " +
		"Shot in high-definition 4K resolution with realistic lens depth, film-grade motion blur, and professional color grading."

	motionGuarantee = "The camera should always be moving, tracking, cutting, or panning to create depth and energy. Avoid static frames, flat angles, or slideshow visuals. " +
		"Maintain filmic motion blur, depth of field, and dynamic lighting changes throughout. Every scene should feel alive with smooth parallax, lens depth, and continuous rhythm."

	negativePrompt = "Do not include text overlays, watermarks, visual artifacts, flicker, distorted faces, or motion blur artifacts."
)

// Visual-only subject identifiers (lowercase for comparison)
var visualSubjects = map[string]bool{
	"none (visual only)":               true,
	"light trails":                     true,
	"color gradient flow":              true,
	"liquid motion":                    true,
	"smoke or ink in water":            true,
	"energy particles":                 true,
	"abstract geometric shapes":        true,
	"floating 3d objects":              true,
	"dynamic waves or ripples":         true,
	"fractal or kaleidoscope patterns": true,
	"cosmic or space visuals":          true,
}

// styleNegatives enforces the chosen visual style by telling the model what
// the output must NOT be.
var styleNegatives = map[string]string{
	"Anime":           "NOT live-action, NOT photorealistic, NOT real people, NOT cinema footage",
	"2D Illustration": "NOT photographic, NOT live-action, NOT realistic rendering, NOT cinema footage, NOT 3D",
	"Trippy":          "NOT straightforward realism, NOT static composition",
	"Vintage":         "NOT modern digital look, NOT clean HD",
}

// Options are the structured creative choices a user made in the frontend.
type Options struct {
	Genre             string
	VisualStyle       string
	CameraMovement    string
	Mood              string
	Subject           string
	Setting           string
	Lighting          string
	CameraType        string
	Duration          string
	CreativeIntensity string
	Extra             string
}

func lookup(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return strings.ToLower(key)
}

// Build assembles the rule-based prompt: a deterministic concatenation of the
// descriptor strings plus fixed cinematic/motion/negative boilerplate and a
// trailing 9:16 and duration clause, with whitespace normalized to single
// spaces.
func Build(opts Options) string {
	genreText := lookup(genreDescriptors, opts.Genre)
	styleText := lookup(styleDescriptors, opts.VisualStyle)
	moodText := lookup(moodDescriptors, opts.Mood)
	lightingText := lookup(lightingDescriptors, opts.Lighting)
	cameraTypeText := lookup(cameraTypeDescriptors, opts.CameraType)
	subjectText := lookup(subjectDescriptors, opts.Subject)
	settingText := lookup(settingDescriptors, opts.Setting)

	isVisualOnly := visualSubjects[strings.ToLower(opts.Subject)]

	var cameraText string
	if isVisualOnly {
		cameraText = lookup(cameraDescriptorsVisual, opts.CameraMovement)
	} else {
		cameraText = lookup(cameraDescriptors, opts.CameraMovement)
	}

	// Scene description depends on mode
	var scene string
	switch {
	case isVisualOnly && opts.Subject == "None (Visual Only)":
		scene = fmt.Sprintf("Scene: Pure abstract visuals within %s, NO human performers, focusing on light, color, texture, and motion synchronized to the music.", settingText)
	case isVisualOnly:
		scene = fmt.Sprintf("Scene: %s flow inside %s.", subjectText, settingText)
	default:
		scene = fmt.Sprintf("Scene: %s performs inside %s, captured with %s and %s.", subjectText, settingText, cameraTypeText, strings.ToLower(opts.CameraMovement))
	}

	// Visual style, emphasized for non-realistic mediums. The negative
	// clause only backs the emphasized mediums; other styles carry the
	// shared negative prompt alone.
	var visuals string
	if opts.VisualStyle == "Anime" || opts.VisualStyle == "2D Illustration" {
		visuals = fmt.Sprintf("VISUAL MEDIUM: %s. %s. Lighting style: %s. %s",
			strings.ToUpper(opts.VisualStyle), styleText, lightingText, styleNegatives[opts.VisualStyle])
	} else {
		visuals = fmt.Sprintf("Visual style: %s with %s. Lighting: %s.", opts.VisualStyle, styleText, lightingText)
	}

	var cameraLine string
	if isVisualOnly {
		cameraLine = fmt.Sprintf("Camera: %s with smooth transitions following the flow.", cameraText)
	} else {
		cameraLine = fmt.Sprintf("Camera work emphasizes %s, with edits that maintain dynamic energy.", strings.ToLower(opts.CameraMovement))
	}

	emotion := fmt.Sprintf("Mood: %s — %s.", opts.Mood, moodText)

	var creative string
	switch opts.CreativeIntensity {
	case "Precise":
		creative = "Direction: Precise execution with continuity and coherent motion. Polished, professional finish."
	case "Experimental":
		creative = "Direction: Experimental and bold. Embrace abstract visuals, reality-bending effects, and artistic risks."
	default: // Balanced
		creative = "Direction: Balanced approach with creative flair and technical polish."
	}

	var extras string
	if e := strings.TrimSpace(opts.Extra); e != "" {
		extras = fmt.Sprintf("Additional notes: %s.", e)
	}

	sections := []string{
		fmt.Sprintf("System intent: Generate a professional short-form vertical video aligned with the provided %s track featuring %s.", opts.Genre, genreText),
		scene,
		visuals,
		fmt.Sprintf("Lighting: %s with %s.", opts.Lighting, lightingText),
		emotion,
		cameraLine,
		creative,
		extras,
		"Format: Vertical 9:16 composition.",
		fmt.Sprintf("Duration: %s.", opts.Duration),
		cinematicDirective,
		motionGuarantee,
		negativePrompt,
	}

	nonEmpty := sections[:0]
	for _, s := range sections {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}

	full := strings.Join(nonEmpty, " ")

	// Normalize all whitespace runs to single spaces
	return strings.Join(strings.Fields(full), " ")
}
