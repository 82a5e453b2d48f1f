package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/chapcut/internal/config"
	"github.com/forPelevin/chapcut/internal/ports"
	"github.com/forPelevin/chapcut/internal/types"
)

type stubVideo struct {
	mu       sync.Mutex
	extracts []ports.ExtractRequest
	concats  int
}

func (s *stubVideo) ExtractClip(_ context.Context, req ports.ExtractRequest) (ports.ExtractResult, error) {
	s.mu.Lock()
	s.extracts = append(s.extracts, req)
	s.mu.Unlock()
	if err := os.WriteFile(req.Output, []byte("clip"), 0o644); err != nil {
		return ports.ExtractResult{}, err
	}
	return ports.ExtractResult{Output: req.Output}, nil
}

func (s *stubVideo) ProbeDuration(context.Context, string) (time.Duration, error) {
	return 200 * time.Second, nil
}

func (s *stubVideo) Keyframes(context.Context, string, time.Duration) ([]time.Duration, error) {
	return nil, errors.New("not used")
}

func (s *stubVideo) Concat(_ context.Context, _ string, output string) error {
	s.mu.Lock()
	s.concats++
	s.mu.Unlock()
	return os.WriteFile(output, []byte("merged"), 0o644)
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T, dir string, v ports.VideoTool) Config {
	t.Helper()
	s := config.Default()
	s.Jobs = 2
	return Config{ParentDir: dir, Settings: s, Video: v}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.mkv", "a.mp4", "c.MOV", "notes.txt", "a_chapters.txt"} {
		touch(t, filepath.Join(dir, n), "")
	}
	if err := os.Mkdir(filepath.Join(dir, "d.mp4"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.mp4", "b.mkv", "c.MOV"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Fatalf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRunNoVideos(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "readme.txt"), "")

	_, err := Run(context.Background(), testConfig(t, dir, &stubVideo{}))
	if !errors.Is(err, ErrNoVideos) {
		t.Fatalf("want ErrNoVideos, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "clips")); !os.IsNotExist(err) {
		t.Fatalf("clips dir should not be created, stat err = %v", err)
	}
}

func TestRunRejectsMissingFolder(t *testing.T) {
	_, err := Run(context.Background(), testConfig(t, filepath.Join(t.TempDir(), "nope"), &stubVideo{}))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunProcessesVideosAndWritesManifest(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "game1.mp4"), "v")
	touch(t, filepath.Join(dir, "game1_chapters.txt"), "00:05:00 - Ace\n00:05:30 - Clutch\n00:20:00 - Win\n")
	touch(t, filepath.Join(dir, "game2.mkv"), "v")
	touch(t, filepath.Join(dir, "game2_chapters.txt"), "00:01:00 - Start\n")
	touch(t, filepath.Join(dir, "game3.mov"), "v")

	v := &stubVideo{}
	cfg := testConfig(t, dir, v)
	cfg.Settings.Merge.Enabled = true

	sum, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sum.Reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(sum.Reports))
	}
	if sum.Reports[0].Err != nil || sum.Reports[1].Err != nil {
		t.Fatalf("unexpected errors: %v, %v", sum.Reports[0].Err, sum.Reports[1].Err)
	}
	if sum.Reports[2].Err == nil {
		t.Fatal("video without chapter file should report an error")
	}
	if got := len(sum.Reports[0].Result.Clips); got != 2 {
		t.Fatalf("game1 clips = %d, want 2", got)
	}
	if got := len(v.extracts); got != 3 {
		t.Fatalf("extract calls = %d, want 3", got)
	}

	for _, p := range []string{
		"clips/game1_1_Ace_Clutch.mp4",
		"clips/game1_2_Win.mp4",
		"clips/game2_1_Start.mp4",
		"merged_videos/game1_merged_1.mp4",
		"merged_videos/game2_merged_1.mp4",
	} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Fatalf("missing output %s: %v", p, err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "clips", "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var m types.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Videos) != 3 {
		t.Fatalf("manifest videos = %d, want 3", len(m.Videos))
	}
	if m.Videos[0].Source != "game1.mp4" || len(m.Videos[0].Batches) != 1 {
		t.Fatalf("unexpected first entry: %+v", m.Videos[0])
	}
	if m.Videos[2].Source != "game3.mov" || m.Videos[2].Chapters != "game3_chapters.txt" || m.Videos[2].Error == "" {
		t.Fatalf("unexpected skipped entry: %+v", m.Videos[2])
	}
}

func TestRunRefusesWhenLocked(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mp4"), "v")
	touch(t, filepath.Join(dir, "a_chapters.txt"), "00:01:00 - x\n")

	r := newRunner(testConfig(t, dir, &stubVideo{}))
	unlock, err := r.prepare()
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	if _, err := Run(context.Background(), testConfig(t, dir, &stubVideo{})); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mp4"), "v")
	touch(t, filepath.Join(dir, "a_chapters.txt"), "00:01:00 - x\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, testConfig(t, dir, &stubVideo{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestSemaphoreLimits(t *testing.T) {
	sem := newSemaphore(1)
	if err := sem.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sem.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second acquire = %v, want deadline exceeded", err)
	}
	sem.release()
	if err := sem.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDuplicateNames(t *testing.T) {
	got := duplicateNames([]string{"/in/a.mkv", "/in/a.mp4", "/in/b.mp4", "/in/a.mov"})
	if len(got) != 2 || got[1] != "/in/a.mkv" || got[3] != "/in/a.mkv" {
		t.Fatalf("duplicateNames = %v", got)
	}
}

func TestRunSkipsVideosSharingAName(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.mkv"), "v")
	touch(t, filepath.Join(dir, "a.mp4"), "v")
	touch(t, filepath.Join(dir, "a_chapters.txt"), "00:05:00 - Ace\n")

	v := &stubVideo{}
	sum, err := Run(context.Background(), testConfig(t, dir, v))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Reports[0].Err != nil {
		t.Fatalf("first video failed: %v", sum.Reports[0].Err)
	}
	if !errors.Is(sum.Reports[1].Err, ErrDuplicateName) {
		t.Fatalf("second video err = %v, want ErrDuplicateName", sum.Reports[1].Err)
	}
	if len(v.extracts) != 1 || v.extracts[0].Source != filepath.Join(dir, "a.mkv") {
		t.Fatalf("extracts = %+v", v.extracts)
	}
	if m := sum.Manifest.Videos[1]; m.Source != "a.mp4" || m.Error == "" {
		t.Fatalf("manifest entry = %+v", m)
	}
}
