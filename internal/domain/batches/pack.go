package batches

import (
	"time"

	"github.com/forPelevin/chapcut/internal/types"
)

// DefaultFoldThreshold is the total below which a trailing batch is folded into
// its predecessor when the predecessor has room.
const DefaultFoldThreshold = 120 * time.Second

// Options bounds a merged output. A zero FoldThreshold means
// DefaultFoldThreshold; configuration never passes zero.
type Options struct {
	MaxDuration   time.Duration
	Tolerance     time.Duration
	FoldThreshold time.Duration
}

// Pack groups clips, in order, into batches whose total stays within
// MaxDuration+Tolerance. A clip that alone exceeds the limit gets its own
// batch. Afterwards a short final batch is folded into the one before it when
// the combined total still fits.
func Pack(clips []types.Clip, opts Options) []types.Batch {
	threshold := opts.FoldThreshold
	if threshold <= 0 {
		threshold = DefaultFoldThreshold
	}
	limit := opts.MaxDuration + opts.Tolerance

	var (
		out []types.Batch
		cur []types.Clip
		sum time.Duration
	)
	for _, c := range clips {
		switch next := sum + c.Duration; {
		case next <= opts.MaxDuration:
			cur = append(cur, c)
			sum = next
		case next <= limit:
			// within tolerance
			cur = append(cur, c)
			sum = next
		default:
			if len(cur) > 0 {
				out = append(out, types.Batch{Clips: cur})
			}
			cur = []types.Clip{c}
			sum = c.Duration
		}
	}
	if len(cur) > 0 {
		out = append(out, types.Batch{Clips: cur})
	}

	return foldTail(out, limit, threshold)
}

// foldTail merges the final batch into the second-to-last one. Only the last
// pair is considered.
func foldTail(out []types.Batch, limit, threshold time.Duration) []types.Batch {
	n := len(out)
	if n < 2 {
		return out
	}
	last, prev := out[n-1].Total(), out[n-2].Total()
	if last < threshold && prev+last <= limit {
		out[n-2].Clips = append(out[n-2].Clips, out[n-1].Clips...)
		out = out[:n-1]
	}
	return out
}
