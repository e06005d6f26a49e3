package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// FFmpegService — audio/video alignment
// Merges the silent generated video with the user's audio track so the final
// visual duration equals the audio duration exactly: the video is looped when
// shorter than the audio and trimmed when longer or equal.
// ---------------------------------------------------------------------------

// Encoder parameters chosen for broad playback compatibility: constant
// quality target, moderate bitrate ceiling, a pixel format every mobile
// decoder accepts, and the moov atom up front so mobile Safari can stream.
const (
	videoCodec   = "libx264"
	audioCodec   = "aac"
	audioBitrate = "192k"
	videoBitrate = "2M"
	encodePreset = "fast"
	encodeCRF    = "23"
	pixelFormat  = "yuv420p"
	movFlags     = "+faststart"
)

// AlignStrategy selects how the video stream is reconciled with the audio
// duration.
type AlignStrategy string

const (
	// StrategyLoopAndTrim repeats the video until it covers the audio, then
	// trims the result to the exact audio duration.
	StrategyLoopAndTrim AlignStrategy = "loop-and-trim"
	// StrategyTrimOnly cuts a video that is already long enough.
	StrategyTrimOnly AlignStrategy = "trim-only"
)

// AlignmentPlan is the deterministic reconciliation decision for one merge.
type AlignmentPlan struct {
	VideoDuration float64
	AudioDuration float64
	Strategy      AlignStrategy
	LoopCount     int // total plays of the video; 1 when trim-only
}

// PlanAlignment picks the strategy from the two probed durations.
// loop-and-trim applies strictly when the video is shorter than the audio.
// Non-positive durations are rejected: ffprobe reports 0 for some degenerate
// containers, and a zero video duration would blow up the loop count.
func PlanAlignment(videoDuration, audioDuration float64) (AlignmentPlan, error) {
	if videoDuration <= 0 {
		return AlignmentPlan{}, fmt.Errorf("unusable video duration %.3fs", videoDuration)
	}
	if audioDuration <= 0 {
		return AlignmentPlan{}, fmt.Errorf("unusable audio duration %.3fs", audioDuration)
	}

	plan := AlignmentPlan{
		VideoDuration: videoDuration,
		AudioDuration: audioDuration,
		Strategy:      StrategyTrimOnly,
		LoopCount:     1,
	}
	if videoDuration < audioDuration {
		plan.Strategy = StrategyLoopAndTrim
		plan.LoopCount = int(math.Ceil(audioDuration / videoDuration))
	}
	return plan, nil
}

// videoFilter builds the -filter_complex chain for the plan. Timestamps are
// reset after looping and again after trimming so playback starts at zero
// with no visible discontinuity at the loop seam.
func (p AlignmentPlan) videoFilter() string {
	trim := fmt.Sprintf("trim=duration=%.6f,setpts=PTS-STARTPTS", p.AudioDuration)
	if p.Strategy == StrategyLoopAndTrim {
		// loop counts additional plays, hence LoopCount-1; size=32767 is the
		// filter's maximum frame window per loop.
		return fmt.Sprintf("[0:v]loop=loop=%d:size=32767,setpts=N/FRAME_RATE/TB,%s[v]", p.LoopCount-1, trim)
	}
	return fmt.Sprintf("[0:v]%s[v]", trim)
}

type FFmpegService struct {
	tempDir string
}

func NewFFmpegService(tempDir string) *FFmpegService {
	// Create temp directory if it doesn't exist
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		panic(fmt.Sprintf("failed to create temp dir: %v", err))
	}

	return &FFmpegService{
		tempDir: tempDir,
	}
}

// TempPath returns a path inside the service's temp directory.
func (s *FFmpegService) TempPath(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files. Already-missing files are fine; removal
// failures are logged, never raised.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("[FFmpeg] Warning: failed to delete temp file %s: %v", path, err)
		}
	}
}

// Probe returns a media file's duration in seconds using ffprobe.
func (s *FFmpegService) Probe(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration of %s: %w", path, err)
	}

	return duration, nil
}

// probeVideoStream returns resolution and codec of the first video stream.
// Informational only; failures are reported, not fatal to the merge.
func (s *FFmpegService) probeVideoStream(ctx context.Context, path string) (string, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height",
		"-of", "csv=p=0",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffprobe stream info failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// Merge combines the silent video with the audio track into outputPath. The
// output's visual duration equals the audio duration: the video loops when
// shorter and is trimmed when longer or equal. The audio stream is carried
// unmodified except for AAC re-encoding into the output container.
func (s *FFmpegService) Merge(ctx context.Context, videoPath, audioPath, outputPath string) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file not found: %s", videoPath)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return fmt.Errorf("audio file not found: %s", audioPath)
	}

	videoDuration, err := s.Probe(ctx, videoPath)
	if err != nil {
		return fmt.Errorf("failed to probe video: %w", err)
	}
	audioDuration, err := s.Probe(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("failed to probe audio: %w", err)
	}

	if info, err := s.probeVideoStream(ctx, videoPath); err == nil {
		log.Printf("[FFmpeg] Input video stream: %s", info)
	}

	plan, err := PlanAlignment(videoDuration, audioDuration)
	if err != nil {
		return fmt.Errorf("cannot align %s with %s: %w", videoPath, audioPath, err)
	}
	log.Printf("[FFmpeg] Merging video=%.2fs audio=%.2fs strategy=%s loops=%d",
		videoDuration, audioDuration, plan.Strategy, plan.LoopCount)

	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-filter_complex", plan.videoFilter(),
		"-map", "[v]",
		"-map", "1:a",
		"-c:v", videoCodec,
		"-preset", encodePreset,
		"-crf", encodeCRF,
		"-b:v", videoBitrate,
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-pix_fmt", pixelFormat,
		"-movflags", movFlags,
		"-y",
		outputPath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg merge failed: %w: %s", err, tailOf(stderr.String(), 800))
	}

	log.Printf("[FFmpeg] Merged output written to %s", outputPath)
	return nil
}

// ExtractSegment cuts [start, end) seconds out of an audio file, used when an
// upload carries explicit segment bounds.
func (s *FFmpegService) ExtractSegment(ctx context.Context, inputPath, outputPath string, start, end float64) error {
	if end <= start {
		return fmt.Errorf("invalid segment bounds: start=%.2f end=%.2f", start, end)
	}

	// Stream copy keeps the source codec, so the output container matches
	// the input extension and no quality is lost.
	args := []string{
		"-i", inputPath,
		"-ss", fmt.Sprintf("%.3f", start),
		"-to", fmt.Sprintf("%.3f", end),
		"-c", "copy",
		"-y",
		outputPath,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg segment extraction failed: %w: %s", err, tailOf(stderr.String(), 400))
	}

	return nil
}

// tailOf keeps the last maxLen characters of encoder output, where the actual
// error lives.
func tailOf(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
