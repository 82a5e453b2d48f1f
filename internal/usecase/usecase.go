package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/chapcut/internal/domain/batches"
	"github.com/forPelevin/chapcut/internal/domain/chapters"
	"github.com/forPelevin/chapcut/internal/domain/intervals"
	"github.com/forPelevin/chapcut/internal/domain/naming"
	"github.com/forPelevin/chapcut/internal/domain/snap"
	"github.com/forPelevin/chapcut/internal/ports"
	"github.com/forPelevin/chapcut/internal/types"
)

type Deps struct {
	Video ports.VideoTool
	Log   *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = slog.New(slog.DiscardHandler)
	}
	return Usecase{d: d}
}

// Input describes one source video. Everything a run needs is carried here so
// that several videos can be processed side by side.
type Input struct {
	Video     string
	Chapters  string
	ClipsDir  string
	MergedDir string

	Lead  time.Duration
	Trail time.Duration

	Snap           string
	KeyframeWindow time.Duration
	KeyframeScan   time.Duration
	AudioFallback  bool

	Merge bool
	Pack  batches.Options
}

type Result struct {
	Intervals []types.PaddedInterval
	Clips     []types.Clip
	Batches   []types.Batch
	Manifest  types.ManifestVideo
}

// ErrProbe marks a clip whose duration could not be read, which stops the
// merge stage for that video.
var ErrProbe = errors.New("probe clip duration")

// Plan loads the chapter file and merges its markers into padded intervals.
func (u Usecase) Plan(in Input) ([]types.PaddedInterval, error) {
	markers, err := chapters.Load(in.Chapters)
	if err != nil {
		return nil, err
	}
	return intervals.Merge(markers, in.Lead, in.Trail), nil
}

// Run extracts one clip per interval and, when enabled, concatenates the clips
// into merged batches. Interval and batch failures are logged and recorded;
// only chapter problems, cancellation and probe failures end the run early.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	video := naming.VideoName(in.Video)
	log := u.d.Log.With("video", video)
	res := Result{Manifest: types.ManifestVideo{
		Source:   filepath.Base(in.Video),
		Chapters: filepath.Base(in.Chapters),
	}}

	ivs, err := u.Plan(in)
	if err != nil {
		return res, err
	}
	res.Intervals = ivs
	res.Manifest.Intervals = manifestIntervals(ivs)
	log.Info("chapters merged", "intervals", len(ivs))

	snapper := u.snapper(ctx, in, log)
	for i, iv := range ivs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		clip, reencoded, err := u.extract(ctx, in, video, i+1, iv, snapper)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("clip skipped", "interval", i+1, "label", iv.Label, "error", err)
			res.Manifest.Skipped = append(res.Manifest.Skipped, types.ManifestSkip{
				Index:  i + 1,
				Label:  iv.Label,
				Reason: firstLine(err.Error()),
			})
			continue
		}
		if reencoded {
			log.Info("audio re-encoded after sync fault", "clip", filepath.Base(clip.Path))
		}
		log.Debug("clip extracted", "clip", filepath.Base(clip.Path))
		res.Clips = append(res.Clips, clip)
		res.Manifest.Clips = append(res.Manifest.Clips, manifestClip(clip, reencoded))
	}
	log.Info("clips extracted", "ok", len(res.Clips), "skipped", len(res.Manifest.Skipped))

	if !in.Merge || len(res.Clips) == 0 {
		return res, nil
	}

	for i := range res.Clips {
		d, err := u.d.Video.ProbeDuration(ctx, res.Clips[i].Path)
		if err != nil {
			return res, fmt.Errorf("%w %s: %w", ErrProbe, filepath.Base(res.Clips[i].Path), err)
		}
		res.Clips[i].Duration = d
		res.Manifest.Clips[i].DurationSec = d.Seconds()
	}

	res.Batches = batches.Pack(res.Clips, in.Pack)
	for i, b := range res.Batches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out := filepath.Join(in.MergedDir, naming.MergedFile(video, i+1))
		mb := manifestBatch(b, out)
		if err := u.concat(ctx, in.MergedDir, b, out); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn("merge failed", "batch", i+1, "error", err)
			mb.Error = firstLine(err.Error())
		} else {
			log.Info("merged video created", "batch", i+1, "clips", len(b.Clips), "duration", b.Total().Round(time.Second))
		}
		res.Manifest.Batches = append(res.Manifest.Batches, mb)
	}
	return res, nil
}

func (u Usecase) extract(
	ctx context.Context,
	in Input,
	video string,
	index int,
	iv types.PaddedInterval,
	snapper snap.Snapper,
) (types.Clip, bool, error) {
	start := snapper.Snap(iv.Start)
	dur := iv.End - start
	if in.Snap != snap.ModeNone {
		dur = snap.EvenCeil(dur)
	}
	if dur <= 0 {
		return types.Clip{}, false, fmt.Errorf("invalid duration %s", dur)
	}

	out := filepath.Join(in.ClipsDir, naming.ClipFile(video, index, iv.Label))
	r, err := u.d.Video.ExtractClip(ctx, ports.ExtractRequest{
		Source:        in.Video,
		Start:         start,
		Duration:      dur,
		Output:        out,
		AudioFallback: in.AudioFallback,
	})
	if err != nil {
		return types.Clip{}, false, err
	}
	return types.Clip{
		Index:    index,
		Path:     out,
		Label:    iv.Label,
		Interval: types.PaddedInterval{Start: start, End: start + dur, Label: iv.Label, Markers: iv.Markers},
	}, r.Reencoded, nil
}

// snapper picks the start adjustment strategy. A keyframe probe failure
// degrades to even-second snapping.
func (u Usecase) snapper(ctx context.Context, in Input, log *slog.Logger) snap.Snapper {
	switch in.Snap {
	case snap.ModeNone:
		return snap.None{}
	case snap.ModeKeyframe:
		frames, err := u.d.Video.Keyframes(ctx, in.Video, in.KeyframeScan)
		if err != nil {
			log.Warn("keyframe probe failed, using even seconds", "error", firstLine(err.Error()))
			return snap.Even{}
		}
		log.Debug("keyframes probed", "count", len(frames))
		return snap.NewKeyframe(frames, in.KeyframeWindow)
	default:
		return snap.Even{}
	}
}

// concat writes an ffmpeg concat list next to the merged outputs and removes
// it afterwards. The list name is unique so parallel videos never share one.
func (u Usecase) concat(ctx context.Context, dir string, b types.Batch, out string) error {
	list := filepath.Join(dir, ".concat-"+uuid.NewString()+".txt")
	if err := os.WriteFile(list, []byte(ConcatList(b)), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(list)
	return u.d.Video.Concat(ctx, list, out)
}

// ConcatList renders the concat demuxer input for a batch. Paths are made
// absolute and single quotes escaped.
func ConcatList(b types.Batch) string {
	var sb strings.Builder
	for _, c := range b.Clips {
		p := c.Path
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		sb.WriteString("'\n")
	}
	return sb.String()
}

func manifestIntervals(ivs []types.PaddedInterval) []types.ManifestInterval {
	out := make([]types.ManifestInterval, 0, len(ivs))
	for _, iv := range ivs {
		mi := types.ManifestInterval{
			StartSec: iv.Start.Seconds(),
			EndSec:   iv.End.Seconds(),
			Label:    iv.Label,
		}
		for _, m := range iv.Markers {
			mi.MarkersSec = append(mi.MarkersSec, m.Seconds())
		}
		out = append(out, mi)
	}
	return out
}

func manifestClip(c types.Clip, reencoded bool) types.ManifestClip {
	return types.ManifestClip{
		ID:        fmt.Sprintf("%03d", c.Index),
		File:      filepath.ToSlash(filepath.Join(naming.ClipsDir, filepath.Base(c.Path))),
		Label:     c.Label,
		StartSec:  c.Interval.Start.Seconds(),
		EndSec:    c.Interval.End.Seconds(),
		Reencoded: reencoded,
	}
}

func manifestBatch(b types.Batch, out string) types.ManifestBatch {
	mb := types.ManifestBatch{
		File:        filepath.ToSlash(filepath.Join(naming.MergedDir, filepath.Base(out))),
		DurationSec: b.Total().Seconds(),
	}
	for _, c := range b.Clips {
		mb.Clips = append(mb.Clips, fmt.Sprintf("%03d", c.Index))
	}
	return mb
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
