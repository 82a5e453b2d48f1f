package types

import "time"

// ChapterMarker is one "HH:MM:SS - label" line of a chapter file.
type ChapterMarker struct {
	At    time.Duration
	Label string
}

type PaddedInterval struct {
	Start time.Duration
	End   time.Duration
	Label string

	// Markers holds the padded start of every marker folded into the interval.
	Markers []time.Duration
}

func (p PaddedInterval) Length() time.Duration { return p.End - p.Start }

type Clip struct {
	Index    int
	Path     string
	Label    string
	Interval PaddedInterval
	Duration time.Duration
}

type Batch struct {
	Clips []Clip
}

func (b Batch) Total() time.Duration {
	var sum time.Duration
	for _, c := range b.Clips {
		sum += c.Duration
	}
	return sum
}

type Manifest struct {
	Input  string          `json:"input"`
	Videos []ManifestVideo `json:"videos"`
}

type ManifestVideo struct {
	Source    string             `json:"source"`
	Chapters  string             `json:"chapters"`
	Intervals []ManifestInterval `json:"intervals"`
	Clips     []ManifestClip     `json:"clips"`
	Skipped   []ManifestSkip     `json:"skipped,omitempty"`
	Batches   []ManifestBatch    `json:"batches,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type ManifestInterval struct {
	StartSec   float64   `json:"start_sec"`
	EndSec     float64   `json:"end_sec"`
	Label      string    `json:"label"`
	MarkersSec []float64 `json:"markers_sec"`
}

type ManifestClip struct {
	ID          string  `json:"id"`
	File        string  `json:"file"`
	Label       string  `json:"label"`
	StartSec    float64 `json:"start_sec"`
	EndSec      float64 `json:"end_sec"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	Reencoded   bool    `json:"reencoded_audio"`
}

type ManifestSkip struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

type ManifestBatch struct {
	File        string   `json:"file"`
	Clips       []string `json:"clips"`
	DurationSec float64  `json:"duration_sec"`
	Error       string   `json:"error,omitempty"`
}
