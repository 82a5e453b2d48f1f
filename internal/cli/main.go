package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/chapcut/internal/pipeline"
)

// Exit statuses.
const (
	exitOK       = 0
	exitFailure  = 1
	exitNoVideos = 2
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present
	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}

// Execute runs the command line and returns the process exit status.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	if errors.Is(err, pipeline.ErrNoVideos) {
		return exitNoVideos
	}
	return exitFailure
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "chapcut <parent-folder>",
		Short:         "Cut clips around chapter markers and merge them into size-bounded videos",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0])
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "Config file (.toml, .yaml)")
	pf.Int("lead", 120, "Seconds kept before each marker")
	pf.Int("trail", 120, "Seconds kept after each marker")
	pf.Bool("merge", false, "Concatenate clips into merged videos")
	pf.Int("max-duration", 480, "Target merged video length in seconds")
	pf.Int("tolerance", 30, "Seconds a merged video may exceed --max-duration")
	pf.String("snap", "even", "Clip start snapping: even, keyframe or none")
	pf.Bool("audio-fallback", true, "Re-encode audio when stream copy hits a timestamp fault")
	pf.Int("jobs", 1, "Videos processed in parallel")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.Bool("no-progress", false, "Disable the progress bar")

	// Hidden tuning flags
	pf.Int("fold-threshold", 120, "Merged tail shorter than this folds into the previous batch")
	pf.Int("keyframe-window", 10, "Max seconds a start moves back to reach a keyframe")
	_ = pf.MarkHidden("fold-threshold")
	_ = pf.MarkHidden("keyframe-window")

	root.AddCommand(newPlanCommand(), newWatchCommand(), newDoctorCommand())
	return root
}

func newPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <parent-folder>",
		Short: "Print the merged intervals per video without running ffmpeg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0])
		},
	}
}

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <parent-folder>",
		Short: "Process the folder, then reprocess videos whenever their chapter file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0])
		},
	}
	cmd.Flags().Duration("settle", pipeline.DefaultSettle, "Quiet period before a changed file is processed")
	return cmd
}

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and ffprobe are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}
