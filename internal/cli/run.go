package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/chapcut/internal/config"
	"github.com/forPelevin/chapcut/internal/deps"
	"github.com/forPelevin/chapcut/internal/domain/chapters"
	"github.com/forPelevin/chapcut/internal/domain/naming"
	"github.com/forPelevin/chapcut/internal/logging"
	"github.com/forPelevin/chapcut/internal/pipeline"
	"github.com/forPelevin/chapcut/internal/usecase"
)

func runProcess(cmd *cobra.Command, dir string) error {
	cfg, err := pipelineConfig(cmd, dir)
	if err != nil {
		return err
	}
	if err := deps.Require(deps.MediaTools(cfg.Settings.Tools.FFmpeg, cfg.Settings.Tools.FFprobe)); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	sum, err := pipeline.Run(ctx, cfg)
	if len(sum.Reports) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), summaryTable(sum))
	}
	return err
}

func runWatch(cmd *cobra.Command, dir string) error {
	cfg, err := pipelineConfig(cmd, dir)
	if err != nil {
		return err
	}
	if err := deps.Require(deps.MediaTools(cfg.Settings.Tools.FFmpeg, cfg.Settings.Tools.FFprobe)); err != nil {
		return err
	}
	settle, _ := cmd.Flags().GetDuration("settle")

	ctx, stop := signalContext()
	defer stop()
	return pipeline.Watch(ctx, cfg, settle)
}

// runPlan parses and merges chapter files only.
func runPlan(cmd *cobra.Command, dir string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	videos, err := pipeline.Discover(dir)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		return fmt.Errorf("%w in %s", pipeline.ErrNoVideos, dir)
	}

	uc := usecase.New(usecase.Deps{})
	out := cmd.OutOrStdout()
	for _, v := range videos {
		ivs, err := uc.Plan(usecase.Input{
			Video:    v,
			Chapters: naming.ChaptersPath(v),
			Lead:     s.Lead(),
			Trail:    s.Trail(),
		})
		switch {
		case errors.Is(err, chapters.ErrNoChapters):
			fmt.Fprintf(out, "%s: no chapter file, skipped\n\n", filepath.Base(v))
			continue
		case err != nil:
			fmt.Fprintf(out, "%s: %v\n\n", filepath.Base(v), err)
			continue
		}
		fmt.Fprintf(out, "%s (%d intervals)\n%s\n\n", filepath.Base(v), len(ivs), planTable(naming.VideoName(v), ivs))
	}
	return nil
}

func runDoctor(cmd *cobra.Command) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	statuses := deps.CheckBinaries(deps.MediaTools(s.Tools.FFmpeg, s.Tools.FFprobe))
	fmt.Fprintln(cmd.OutOrStdout(), doctorTable(statuses))
	for _, st := range statuses {
		if !st.Available {
			return &deps.DependencyError{Name: st.Name, Command: st.Command, InstallURL: deps.FFmpegInstallURL}
		}
	}
	return nil
}

func pipelineConfig(cmd *cobra.Command, dir string) (pipeline.Config, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return pipeline.Config{}, err
	}
	log, err := logging.New(logging.Options{
		Level:  s.Logging.Level,
		Format: s.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg := pipeline.Config{
		ParentDir: absDir,
		Settings:  s,
		Log:       log,
		Progress:  progressWriter(cmd),
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadSettings applies defaults, then the config file, then CHAPCUT_*
// variables, then flags the user set explicitly.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	s, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	s.ApplyEnv()

	intFlags := map[string]*int{
		"lead":            &s.Padding.Lead,
		"trail":           &s.Padding.Trail,
		"max-duration":    &s.Merge.MaxDuration,
		"tolerance":       &s.Merge.Tolerance,
		"fold-threshold":  &s.Merge.FoldThreshold,
		"keyframe-window": &s.Extract.KeyframeWindow,
		"jobs":            &s.Jobs,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	boolFlags := map[string]*bool{
		"merge":          &s.Merge.Enabled,
		"audio-fallback": &s.Extract.AudioFallback,
	}
	for name, dst := range boolFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}
	stringFlags := map[string]*string{
		"snap":       &s.Extract.Snap,
		"log-level":  &s.Logging.Level,
		"log-format": &s.Logging.Format,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	if err := s.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

// progressWriter returns stderr when a progress bar makes sense there.
func progressWriter(cmd *cobra.Command) io.Writer {
	if off, _ := cmd.Flags().GetBool("no-progress"); off {
		return nil
	}
	w := cmd.ErrOrStderr()
	if !logging.IsTerminal(w) {
		return nil
	}
	return w
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
