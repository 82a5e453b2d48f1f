package ports

import (
	"context"
	"time"
)

type ExtractRequest struct {
	Source   string
	Start    time.Duration
	Duration time.Duration
	Output   string

	// AudioFallback allows one retry with re-encoded audio when stream copy
	// trips over broken timestamps.
	AudioFallback bool
}

type ExtractResult struct {
	Output    string
	Reencoded bool
}

type VideoTool interface {
	ExtractClip(ctx context.Context, req ExtractRequest) (ExtractResult, error)
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
	// Keyframes lists keyframe times within the first scan of the video; a
	// non-positive scan reads the whole file.
	Keyframes(ctx context.Context, path string, scan time.Duration) ([]time.Duration, error)
	Concat(ctx context.Context, listFile, output string) error
}
