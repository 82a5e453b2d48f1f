package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forPelevin/chapcut/internal/deps"
	"github.com/forPelevin/chapcut/internal/pipeline"
	"github.com/forPelevin/chapcut/internal/types"
	"github.com/forPelevin/chapcut/internal/usecase"
)

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(fmt.Errorf("%w in /x", pipeline.ErrNoVideos)); got != exitNoVideos {
		t.Fatalf("exitCode(no videos) = %d", got)
	}
	if got := exitCode(errors.New("boom")); got != exitFailure {
		t.Fatalf("exitCode(other) = %d", got)
	}
}

func TestExecuteRequiresFolder(t *testing.T) {
	code, _, stderr := execute(t)
	if code != exitFailure {
		t.Fatalf("code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr, "arg") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestExecuteUnknownFlag(t *testing.T) {
	code, _, stderr := execute(t, "--nope", t.TempDir())
	if code != exitFailure || !strings.Contains(stderr, "unknown flag") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
}

func TestPlanNoVideos(t *testing.T) {
	code, _, stderr := execute(t, "plan", t.TempDir())
	if code != exitNoVideos {
		t.Fatalf("code = %d, want %d (stderr %q)", code, exitNoVideos, stderr)
	}
}

func TestPlanPrintsIntervals(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "match.mp4"), "")
	writeFile(t, filepath.Join(dir, "match_chapters.txt"), "00:00:30 - Intro\n00:02:00 - Fight\n00:10:00 - Outro\n")
	writeFile(t, filepath.Join(dir, "other.mkv"), "")

	code, stdout, stderr := execute(t, "plan", "--trail", "60", dir)
	if code != exitOK {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
	for _, want := range []string{
		"match.mp4 (2 intervals)",
		"00:00:00", "00:03:00", "Fight_Intro",
		"00:08:00", "00:11:00", "match_2_Outro.mp4",
		"other.mkv: no chapter file, skipped",
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestPlanRejectsBadSnap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp4"), "")
	code, _, stderr := execute(t, "plan", "--snap", "sideways", dir)
	if code != exitFailure || !strings.Contains(stderr, "snap") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
}

func TestDoctorReportsMissingTool(t *testing.T) {
	t.Setenv("CHAPCUT_FFMPEG", "chapcut-no-such-ffmpeg")
	code, stdout, stderr := execute(t, "doctor")
	if code != exitFailure {
		t.Fatalf("code = %d", code)
	}
	if !strings.Contains(stdout, "missing") || !strings.Contains(stderr, "chapcut-no-such-ffmpeg") {
		t.Fatalf("stdout = %q, stderr = %q", stdout, stderr)
	}
}

func TestRunFailsFastWithoutFFmpeg(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp4"), "")
	t.Setenv("CHAPCUT_FFMPEG", "chapcut-no-such-ffmpeg")

	code, _, stderr := execute(t, dir)
	if code != exitFailure || !strings.Contains(stderr, "not found") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "clips")); !os.IsNotExist(err) {
		t.Fatal("no output folder expected when ffmpeg is missing")
	}
}

func TestLoadSettingsPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "chapcut.toml")
	writeFile(t, cfgPath, "[padding]\nlead = 90\ntrail = 45\n\n[logging]\nlevel = \"warn\"\n")
	t.Setenv("CHAPCUT_LOG_LEVEL", "debug")

	cmd := newRootCommand()
	if err := cmd.ParseFlags([]string{"--config", cfgPath, "--trail", "30", "--merge"}); err != nil {
		t.Fatal(err)
	}
	s, err := loadSettings(cmd)
	if err != nil {
		t.Fatal(err)
	}
	if s.Padding.Lead != 90 {
		t.Fatalf("lead = %d, want 90 from file", s.Padding.Lead)
	}
	if s.Padding.Trail != 30 {
		t.Fatalf("trail = %d, want 30 from flag", s.Padding.Trail)
	}
	if s.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug from env", s.Logging.Level)
	}
	if !s.Merge.Enabled || s.Merge.MaxDuration != 480 {
		t.Fatalf("merge = %+v", s.Merge)
	}
}

func TestSummaryTable(t *testing.T) {
	sum := pipeline.Summary{Reports: []pipeline.VideoReport{
		{
			Video: "/in/a.mp4",
			Result: usecase.Result{
				Intervals: make([]types.PaddedInterval, 3),
				Manifest: types.ManifestVideo{
					Clips:   make([]types.ManifestClip, 2),
					Skipped: make([]types.ManifestSkip, 1),
					Batches: []types.ManifestBatch{{}, {Error: "concat failed"}},
				},
			},
		},
		{Video: "/in/b.mp4", Err: errors.New("chapter file not found")},
	}}
	out := summaryTable(sum)
	for _, want := range []string{"a.mp4", "1 (1 failed)", "b.mp4", "chapter file not found"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestDoctorTable(t *testing.T) {
	out := doctorTable([]deps.Status{
		{Requirement: deps.Requirement{Name: "ffmpeg", Description: "clips"}, Available: true, Detail: "/usr/bin/ffmpeg"},
		{Requirement: deps.Requirement{Name: "ffprobe"}, Detail: "binary \"x\" not found"},
	})
	if !strings.Contains(out, "/usr/bin/ffmpeg") || !strings.Contains(out, "missing") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
