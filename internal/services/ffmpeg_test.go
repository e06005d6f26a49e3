package services

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strings"
	"testing"
)

func mustPlan(t *testing.T, video, audio float64) AlignmentPlan {
	t.Helper()
	plan, err := PlanAlignment(video, audio)
	if err != nil {
		t.Fatalf("PlanAlignment(%g, %g): %v", video, audio, err)
	}
	return plan
}

func TestPlanAlignmentLoopBranch(t *testing.T) {
	plan := mustPlan(t, 3.0, 10.0)

	if plan.Strategy != StrategyLoopAndTrim {
		t.Fatalf("strategy = %s, want loop-and-trim", plan.Strategy)
	}
	if plan.LoopCount != 4 {
		t.Errorf("loop count = %d, want ceil(10/3) = 4", plan.LoopCount)
	}
}

func TestPlanAlignmentTrimBranch(t *testing.T) {
	cases := []struct {
		name  string
		video float64
		audio float64
	}{
		{"video longer", 15.0, 10.0},
		{"equal durations", 8.0, 8.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := mustPlan(t, tc.video, tc.audio)
			if plan.Strategy != StrategyTrimOnly {
				t.Errorf("strategy = %s, want trim-only", plan.Strategy)
			}
			if plan.LoopCount != 1 {
				t.Errorf("loop count = %d, want 1", plan.LoopCount)
			}
		})
	}
}

func TestPlanAlignmentExactMultiple(t *testing.T) {
	// 2.5s video over 10s audio is exactly 4 plays, no extra loop
	plan := mustPlan(t, 2.5, 10.0)
	if plan.LoopCount != 4 {
		t.Errorf("loop count = %d, want 4", plan.LoopCount)
	}
}

func TestPlanAlignmentRejectsDegenerateDurations(t *testing.T) {
	cases := []struct {
		name  string
		video float64
		audio float64
		want  string
	}{
		{"zero video", 0, 10.0, "video duration"},
		{"negative video", -1.5, 10.0, "video duration"},
		{"zero audio", 8.0, 0, "audio duration"},
		{"negative audio", 8.0, -3.0, "audio duration"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := PlanAlignment(tc.video, tc.audio)
			if err == nil {
				t.Fatalf("PlanAlignment(%g, %g) = %+v, want error", tc.video, tc.audio, plan)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestVideoFilterLoopBranch(t *testing.T) {
	plan := mustPlan(t, 3.0, 10.0)
	filter := plan.videoFilter()

	// 4 total plays means 3 additional loops
	if !strings.Contains(filter, "loop=loop=3:size=32767") {
		t.Errorf("filter missing loop stage: %s", filter)
	}
	if !strings.Contains(filter, "setpts=N/FRAME_RATE/TB") {
		t.Errorf("filter missing timestamp reset after loop: %s", filter)
	}
	if !strings.Contains(filter, "trim=duration=10.000000") {
		t.Errorf("filter missing exact-duration trim: %s", filter)
	}
	if !strings.HasSuffix(filter, "setpts=PTS-STARTPTS[v]") {
		t.Errorf("filter must end with a zero-based timestamp reset: %s", filter)
	}
}

func TestVideoFilterTrimBranch(t *testing.T) {
	plan := mustPlan(t, 15.0, 10.0)
	filter := plan.videoFilter()

	if strings.Contains(filter, "loop=") {
		t.Errorf("trim-only filter must not loop: %s", filter)
	}
	if !strings.Contains(filter, "trim=duration=10.000000,setpts=PTS-STARTPTS") {
		t.Errorf("trim-only filter wrong: %s", filter)
	}
}

func TestTailOf(t *testing.T) {
	long := strings.Repeat("x", 100) + "actual error here"
	got := tailOf(long, 20)
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "actual error here") {
		t.Errorf("tailOf did not keep the end: %q", got)
	}

	if got := tailOf("short", 20); got != "short" {
		t.Errorf("tailOf truncated a short string: %q", got)
	}
}

// requireFFmpeg skips when the binaries are not installed, so the encode
// tests only run where they can.
func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
}

// synthesize writes a short test clip with lavfi sources.
func synthesize(t *testing.T, ctx context.Context, outputPath string, args ...string) {
	t.Helper()
	full := append([]string{"-y"}, args...)
	full = append(full, outputPath)
	out, err := exec.CommandContext(ctx, "ffmpeg", full...).CombinedOutput()
	if err != nil {
		t.Fatalf("ffmpeg %v: %v: %s", args, err, tailOf(string(out), 400))
	}
}

func TestMergeOutputMatchesAudioDuration(t *testing.T) {
	requireFFmpeg(t)

	ctx := context.Background()
	svc := NewFFmpegService(t.TempDir())

	cases := []struct {
		name     string
		videoSec float64
		audioSec float64
	}{
		{"video shorter loops", 2.0, 5.0},
		{"video longer trims", 6.0, 3.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			videoPath := svc.TempPath(strings.ReplaceAll(tc.name, " ", "_") + "_in.mp4")
			audioPath := svc.TempPath(strings.ReplaceAll(tc.name, " ", "_") + "_in.m4a")
			outputPath := svc.TempPath(strings.ReplaceAll(tc.name, " ", "_") + "_out.mp4")
			defer svc.Cleanup(videoPath, audioPath, outputPath)

			synthesize(t, ctx, videoPath,
				"-f", "lavfi", "-i", fmt.Sprintf("testsrc=duration=%g:size=128x128:rate=24", tc.videoSec),
				"-pix_fmt", "yuv420p")
			synthesize(t, ctx, audioPath,
				"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:duration=%g", tc.audioSec),
				"-c:a", "aac")

			if err := svc.Merge(ctx, videoPath, audioPath, outputPath); err != nil {
				t.Fatalf("Merge: %v", err)
			}

			got, err := svc.Probe(ctx, outputPath)
			if err != nil {
				t.Fatalf("Probe: %v", err)
			}
			// One frame of slack for container rounding
			if math.Abs(got-tc.audioSec) > 0.15 {
				t.Errorf("output duration = %.3fs, want %.3fs", got, tc.audioSec)
			}
		})
	}
}
