package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"

	"github.com/forPelevin/chapcut/internal/config"
	"github.com/forPelevin/chapcut/internal/domain/batches"
	"github.com/forPelevin/chapcut/internal/domain/chapters"
	"github.com/forPelevin/chapcut/internal/domain/naming"
	"github.com/forPelevin/chapcut/internal/logging"
	"github.com/forPelevin/chapcut/internal/ports"
	"github.com/forPelevin/chapcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/chapcut/internal/types"
	"github.com/forPelevin/chapcut/internal/usecase"
)

// ErrNoVideos is returned when the parent folder holds no source recordings.
var ErrNoVideos = errors.New("no video files found")

// ErrDuplicateName marks a video whose name without extension matches an
// earlier video. Both would read the same chapter file and write the same
// outputs, so only the first is processed.
var ErrDuplicateName = errors.New("another video has the same name")

const (
	lockFile     = ".chapcut.lock"
	manifestFile = "manifest.json"
)

type Config struct {
	ParentDir string
	Settings  config.Config
	Log       *slog.Logger

	// Progress receives a progress bar over source videos; nil disables it.
	Progress io.Writer

	// Video overrides the ffmpeg adapter, for tests.
	Video ports.VideoTool
}

func (c Config) Validate() error {
	if c.ParentDir == "" {
		return errors.New("parent folder is empty")
	}
	fi, err := os.Stat(c.ParentDir)
	if err != nil {
		return fmt.Errorf("stat parent folder: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", c.ParentDir)
	}
	return c.Settings.Validate()
}

// VideoReport is the outcome for one source video.
type VideoReport struct {
	Video  string
	Result usecase.Result
	Err    error
}

type Summary struct {
	Reports  []VideoReport
	Manifest types.Manifest
}

// Discover lists source videos directly inside dir, sorted by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read parent folder: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !naming.IsVideo(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Run processes every video in the parent folder. Per-video failures are
// logged and reported, never fatal; only setup problems return an error.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	r := newRunner(cfg)

	videos, err := Discover(cfg.ParentDir)
	if err != nil {
		return Summary{}, err
	}
	if len(videos) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoVideos, cfg.ParentDir)
	}

	unlock, err := r.prepare()
	if err != nil {
		return Summary{}, err
	}
	defer unlock()

	reports := r.processAll(ctx, videos)
	sum := Summary{Reports: reports, Manifest: buildManifest(cfg.ParentDir, reports)}
	if err := r.writeManifest(sum.Manifest); err != nil {
		return sum, err
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	r.log.Info("all videos processed", "videos", len(videos), "failed", countFailed(reports))
	return sum, nil
}

type runner struct {
	cfg       Config
	log       *slog.Logger
	uc        usecase.Usecase
	clipsDir  string
	mergedDir string
}

func newRunner(cfg Config) *runner {
	log := cfg.Log
	if log == nil {
		log = logging.Discard()
	}
	video := cfg.Video
	if video == nil {
		video = ffmpeg.New(cfg.Settings.Tools.FFmpeg, cfg.Settings.Tools.FFprobe)
	}
	return &runner{
		cfg:       cfg,
		log:       log,
		uc:        usecase.New(usecase.Deps{Video: video, Log: log}),
		clipsDir:  filepath.Join(cfg.ParentDir, naming.ClipsDir),
		mergedDir: filepath.Join(cfg.ParentDir, naming.MergedDir),
	}
}

// prepare creates the output folders and takes the run lock.
func (r *runner) prepare() (func(), error) {
	for _, d := range []string{r.clipsDir, r.mergedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, err
		}
	}
	lock := flock.New(filepath.Join(r.cfg.ParentDir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another chapcut run is already using %s", r.cfg.ParentDir)
	}
	r.log.Debug("output dirs ready", "clips", r.clipsDir, "merged", r.mergedDir)
	return func() {
		if err := lock.Unlock(); err != nil {
			r.log.Warn("failed to release lock", "error", err)
		}
	}, nil
}

// processAll runs up to Settings.Jobs videos at once. Reports keep the order
// of videos.
func (r *runner) processAll(ctx context.Context, videos []string) []VideoReport {
	reports := make([]VideoReport, len(videos))
	bar := r.newBar(len(videos))
	sem := newSemaphore(r.cfg.Settings.Jobs)
	dups := duplicateNames(videos)

	var wg sync.WaitGroup
	for i, v := range videos {
		if first, ok := dups[i]; ok {
			err := fmt.Errorf("%w: %s", ErrDuplicateName, filepath.Base(first))
			r.log.Warn("skipping video", "video", filepath.Base(v), "error", err)
			reports[i] = VideoReport{Video: v, Err: err}
			if bar != nil {
				_ = bar.Add(1)
			}
			continue
		}
		if err := sem.acquire(ctx); err != nil {
			reports[i] = VideoReport{Video: v, Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, v string) {
			defer wg.Done()
			defer sem.release()
			reports[i] = r.processVideo(ctx, v)
			if bar != nil {
				_ = bar.Add(1)
			}
		}(i, v)
	}
	wg.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	return reports
}

func (r *runner) processVideo(ctx context.Context, video string) VideoReport {
	s := r.cfg.Settings
	in := usecase.Input{
		Video:          video,
		Chapters:       naming.ChaptersPath(video),
		ClipsDir:       r.clipsDir,
		MergedDir:      r.mergedDir,
		Lead:           s.Lead(),
		Trail:          s.Trail(),
		Snap:           s.Extract.Snap,
		KeyframeWindow: config.Seconds(s.Extract.KeyframeWindow),
		KeyframeScan:   config.Seconds(s.Extract.KeyframeScan),
		AudioFallback:  s.Extract.AudioFallback,
		Merge:          s.Merge.Enabled,
		Pack: batches.Options{
			MaxDuration:   config.Seconds(s.Merge.MaxDuration),
			Tolerance:     config.Seconds(s.Merge.Tolerance),
			FoldThreshold: config.Seconds(s.Merge.FoldThreshold),
		},
	}

	log := r.log.With("video", filepath.Base(video))
	log.Info("processing", "chapters", filepath.Base(in.Chapters))
	res, err := r.uc.Run(ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, chapters.ErrNoChapters):
		log.Warn("skipping: no chapter file", "expected", filepath.Base(in.Chapters))
	case errors.Is(err, context.Canceled):
		log.Warn("cancelled")
	default:
		log.Error("video failed", "error", err)
	}
	if err != nil {
		res.Manifest.Error = err.Error()
	}
	return VideoReport{Video: video, Result: res, Err: err}
}

func (r *runner) newBar(n int) *progressbar.ProgressBar {
	if r.cfg.Progress == nil || n < 2 {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(r.cfg.Progress),
		progressbar.OptionSetDescription("videos"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(r.cfg.Progress) }),
	)
}

func (r *runner) writeManifest(m types.Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	p := filepath.Join(r.clipsDir, manifestFile)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return err
	}
	r.log.Debug("manifest written", "path", p)
	return nil
}

func buildManifest(parent string, reports []VideoReport) types.Manifest {
	m := types.Manifest{Input: parent}
	for _, rep := range reports {
		mv := rep.Result.Manifest
		if mv.Source == "" {
			mv.Source = filepath.Base(rep.Video)
			mv.Chapters = filepath.Base(naming.ChaptersPath(rep.Video))
		}
		if rep.Err != nil && mv.Error == "" {
			mv.Error = rep.Err.Error()
		}
		m.Videos = append(m.Videos, mv)
	}
	return m
}

// duplicateNames maps the index of every video whose extensionless name was
// already seen to the first video with that name.
func duplicateNames(videos []string) map[int]string {
	seen := make(map[string]string, len(videos))
	dups := map[int]string{}
	for i, v := range videos {
		name := naming.VideoName(v)
		if first, ok := seen[name]; ok {
			dups[i] = first
			continue
		}
		seen[name] = v
	}
	return dups
}

func countFailed(reports []VideoReport) int {
	n := 0
	for _, r := range reports {
		if r.Err != nil {
			n++
		}
	}
	return n
}
