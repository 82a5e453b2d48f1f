package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

const FFmpegInstallURL = "https://ffmpeg.org/download.html"

// Requirement is an external binary chapcut shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

type Status struct {
	Requirement
	Available bool
	Detail    string
}

// DependencyError reports a missing binary.
type DependencyError struct {
	Name       string
	Command    string
	InstallURL string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s (%q) not found. Install from: %s", e.Name, e.Command, e.InstallURL)
}

// MediaTools lists the binaries every run needs.
func MediaTools(ffmpegPath, ffprobePath string) []Requirement {
	return []Requirement{
		{Name: "ffmpeg", Command: ffmpegPath, Description: "clip extraction and concatenation"},
		{Name: "ffprobe", Command: ffprobePath, Description: "duration and keyframe probing"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch {
		case req.Command == "":
			status.Detail = "command not configured"
		default:
			if path, err := exec.LookPath(req.Command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			} else {
				status.Available = true
				status.Detail = path
			}
		}
		results = append(results, status)
	}
	return results
}

// Require returns a DependencyError for the first unavailable requirement.
func Require(requirements []Requirement) error {
	for _, s := range CheckBinaries(requirements) {
		if !s.Available {
			return &DependencyError{Name: s.Name, Command: s.Command, InstallURL: FFmpegInstallURL}
		}
	}
	return nil
}
