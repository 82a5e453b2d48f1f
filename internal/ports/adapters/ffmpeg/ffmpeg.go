package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/chapcut/internal/ports"
)

// ErrSyncFault marks a stream-copy failure caused by broken timestamps, the
// case where re-encoding audio usually helps.
var ErrSyncFault = errors.New("audio/video sync fault")

var reSyncFault = regexp.MustCompile(`(?i)non[- ]monoton|backward in time|invalid dts|timestamps are unset|pts has no value|out of order`)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) ExtractClip(ctx context.Context, req ports.ExtractRequest) (ports.ExtractResult, error) {
	if req.Duration <= 0 {
		return ports.ExtractResult{}, fmt.Errorf("invalid clip duration %s", req.Duration)
	}
	err := a.extract(ctx, req, false)
	if err == nil {
		return ports.ExtractResult{Output: req.Output}, nil
	}
	if !req.AudioFallback || !errors.Is(err, ErrSyncFault) || ctx.Err() != nil {
		return ports.ExtractResult{}, err
	}
	if err := a.extract(ctx, req, true); err != nil {
		return ports.ExtractResult{}, fmt.Errorf("after audio re-encode retry: %w", err)
	}
	return ports.ExtractResult{Output: req.Output, Reencoded: true}, nil
}

func (a *Adapter) extract(ctx context.Context, req ports.ExtractRequest, reencodeAudio bool) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg, extractArgs(req, reencodeAudio)...)
	b, err := cmd.CombinedOutput()
	if err == nil {
		err = checkOutput(req.Output)
	}
	if err == nil {
		return nil
	}
	// A failed run may leave a partial file behind.
	_ = os.Remove(req.Output)
	if reSyncFault.Match(b) {
		err = fmt.Errorf("%w: %w", ErrSyncFault, err)
	}
	return fmt.Errorf("ffmpeg extract clip: %w\n%s", err, string(b))
}

func extractArgs(req ports.ExtractRequest, reencodeAudio bool) []string {
	args := []string{
		"-y",
		"-i", req.Source,
		"-ss", fmtSeconds(req.Start),
		"-t", fmtSeconds(req.Duration),
		"-map", "0:v",
		"-map", "0:a:0?",
		"-c:v", "copy",
	}
	if reencodeAudio {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-c:a", "copy")
	}
	return append(args,
		"-reset_timestamps", "1",
		"-avoid_negative_ts", "make_zero",
		req.Output,
	)
}

// checkOutput fails when ffmpeg exited cleanly but left nothing usable. A
// zero-byte leftover is removed.
func checkOutput(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("output missing: %w", err)
	}
	if fi.Size() == 0 {
		_ = os.Remove(path)
		return fmt.Errorf("output %s is empty", path)
	}
	return nil
}

func (a *Adapter) Concat(ctx context.Context, listFile, output string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	)
	b, err := cmd.CombinedOutput()
	if err == nil {
		err = checkOutput(output)
	}
	if err != nil {
		return fmt.Errorf("ffmpeg concat: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return fromSeconds(sec), nil
}

func (a *Adapter) Keyframes(ctx context.Context, path string, scan time.Duration) ([]time.Duration, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-skip_frame", "nokey",
		"-show_entries", "frame=best_effort_timestamp_time,pict_type",
		"-of", "csv=print_section=0",
	}
	if scan > 0 {
		args = append(args, "-read_intervals", "%+"+fmtSeconds(scan))
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, a.ffprobe, args...)
	b, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("ffprobe keyframes: %w\n%s", err, string(ee.Stderr))
		}
		return nil, fmt.Errorf("ffprobe keyframes: %w", err)
	}
	return parseKeyframes(string(b)), nil
}

// parseKeyframes reads "time,type" rows and keeps I-frames. Rows that do not
// parse are skipped.
func parseKeyframes(out string) []time.Duration {
	var frames []time.Duration
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(strings.TrimSpace(line), ",")
		if len(parts) < 2 || strings.TrimSpace(parts[1]) != "I" {
			continue
		}
		sec, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			continue
		}
		frames = append(frames, fromSeconds(sec))
	}
	return frames
}

// fromSeconds rounds to the nearest nanosecond; ffprobe prints decimals that
// float64 cannot hold exactly.
func fromSeconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
