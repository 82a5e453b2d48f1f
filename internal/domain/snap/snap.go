// Package snap adjusts requested clip start times before extraction.
package snap

import (
	"fmt"
	"sort"
	"time"
)

// Snapper moves a requested start time to one the extractor can cut cleanly.
// Implementations never return a negative time or a time later than the input.
type Snapper interface {
	Snap(t time.Duration) time.Duration
}

const (
	ModeEven     = "even"
	ModeKeyframe = "keyframe"
	ModeNone     = "none"
)

// ValidMode reports whether mode names a known strategy.
func ValidMode(mode string) error {
	switch mode {
	case ModeEven, ModeKeyframe, ModeNone:
		return nil
	}
	return fmt.Errorf("unknown snap mode %q (want %s, %s or %s)", mode, ModeEven, ModeKeyframe, ModeNone)
}

type None struct{}

func (None) Snap(t time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	return t
}

// Even truncates to a whole second and then down to an even one.
type Even struct{}

func (Even) Snap(t time.Duration) time.Duration { return evenFloor(t) }

// Keyframe snaps to the closest keyframe at or before t, provided it lies
// within Window of t, and then to an even second. Without a usable keyframe it
// behaves like Even.
type Keyframe struct {
	frames []time.Duration
	window time.Duration
}

// NewKeyframe copies and sorts frames. A non-positive window allows any
// distance.
func NewKeyframe(frames []time.Duration, window time.Duration) *Keyframe {
	sorted := append([]time.Duration(nil), frames...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &Keyframe{frames: sorted, window: window}
}

func (k *Keyframe) Snap(t time.Duration) time.Duration {
	i := sort.Search(len(k.frames), func(i int) bool { return k.frames[i] > t })
	if i == 0 {
		return evenFloor(t)
	}
	kf := k.frames[i-1]
	if k.window > 0 && t-kf > k.window {
		return evenFloor(t)
	}
	return evenFloor(kf)
}

func evenFloor(t time.Duration) time.Duration {
	if t <= 0 {
		return 0
	}
	s := int64(t / time.Second)
	s -= s % 2
	return time.Duration(s) * time.Second
}

// EvenCeil rounds a duration up to a whole, even number of seconds.
func EvenCeil(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	s := int64((d + time.Second - 1) / time.Second)
	s += s % 2
	return time.Duration(s) * time.Second
}
