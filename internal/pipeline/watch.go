package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/forPelevin/chapcut/internal/domain/naming"
	"github.com/forPelevin/chapcut/internal/types"
)

// DefaultSettle is how long a video and its chapter file must stay untouched
// before watch mode processes them.
const DefaultSettle = 2 * time.Second

// Watch processes the videos already in the parent folder, then keeps
// processing any video whose chapter file (or the video itself) is created or
// rewritten, until ctx is cancelled. The manifest is rewritten after every
// video.
func Watch(ctx context.Context, cfg Config, settle time.Duration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	r := newRunner(cfg)

	unlock, err := r.prepare()
	if err != nil {
		return err
	}
	defer unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(cfg.ParentDir); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.ParentDir, err)
	}

	seen := map[string]types.ManifestVideo{}
	process := func(videos []string) error {
		for _, rep := range r.processAll(ctx, videos) {
			seen[rep.Video] = buildManifest(cfg.ParentDir, []VideoReport{rep}).Videos[0]
		}
		return r.writeManifest(manifestOf(cfg.ParentDir, seen))
	}

	existing, err := Discover(cfg.ParentDir)
	if err != nil {
		return err
	}
	var ready []string
	for _, v := range existing {
		if fileExists(naming.ChaptersPath(v)) {
			ready = append(ready, v)
		}
	}
	if len(ready) > 0 {
		if err := process(ready); err != nil {
			return err
		}
	}
	r.log.Info("watching for chapter files", "dir", cfg.ParentDir, "settle", settle)

	pending := map[string]time.Time{}
	tick := time.NewTicker(max(settle/4, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if v, ok := videoFor(ev.Name); ok {
				pending[v] = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.log.Warn("watcher error", "error", err)
		case now := <-tick.C:
			batch := due(pending, now, settle)
			if len(batch) == 0 {
				continue
			}
			if err := process(batch); err != nil {
				r.log.Error("manifest update failed", "error", err)
			}
		}
	}
}

// videoFor resolves a changed path to the video it concerns. Both the video and
// its chapter file must exist.
func videoFor(path string) (string, bool) {
	dir := filepath.Dir(path)
	if name, ok := naming.VideoForChapters(path); ok {
		for _, ext := range naming.VideoExts {
			v := filepath.Join(dir, name+ext)
			if fileExists(v) {
				return v, true
			}
		}
		return "", false
	}
	if naming.IsVideo(path) && fileExists(naming.ChaptersPath(path)) {
		return path, true
	}
	return "", false
}

// due removes and returns, sorted, every pending video untouched for settle.
func due(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var out []string
	for v, t := range pending {
		if now.Sub(t) >= settle {
			out = append(out, v)
			delete(pending, v)
		}
	}
	sort.Strings(out)
	return out
}

func manifestOf(parent string, seen map[string]types.ManifestVideo) types.Manifest {
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := types.Manifest{Input: parent}
	for _, k := range keys {
		m.Videos = append(m.Videos, seen[k])
	}
	return m
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
