package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/forPelevin/chapcut/internal/domain/snap"
)

// Padding is applied around every chapter marker, in seconds.
type Padding struct {
	Lead  int `toml:"lead" yaml:"lead"`
	Trail int `toml:"trail" yaml:"trail"`
}

// Merge controls packing clips into merged outputs. Durations are seconds.
type Merge struct {
	Enabled       bool `toml:"enabled" yaml:"enabled"`
	MaxDuration   int  `toml:"max_duration" yaml:"max_duration"`
	Tolerance     int  `toml:"tolerance" yaml:"tolerance"`
	FoldThreshold int  `toml:"fold_threshold" yaml:"fold_threshold"`
}

// Extract tunes clip extraction. KeyframeWindow bounds how far back a start
// may move to reach a keyframe; KeyframeScan limits keyframe probing to the
// first N seconds of a video (0 scans all of it).
type Extract struct {
	Snap           string `toml:"snap" yaml:"snap"`
	KeyframeWindow int    `toml:"keyframe_window" yaml:"keyframe_window"`
	KeyframeScan   int    `toml:"keyframe_scan" yaml:"keyframe_scan"`
	AudioFallback  bool   `toml:"audio_fallback" yaml:"audio_fallback"`
}

type Tools struct {
	FFmpeg  string `toml:"ffmpeg" yaml:"ffmpeg"`
	FFprobe string `toml:"ffprobe" yaml:"ffprobe"`
}

type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Config is the full run configuration. Jobs is how many source videos are
// processed at once.
type Config struct {
	Padding Padding `toml:"padding" yaml:"padding"`
	Merge   Merge   `toml:"merge" yaml:"merge"`
	Extract Extract `toml:"extract" yaml:"extract"`
	Tools   Tools   `toml:"tools" yaml:"tools"`
	Logging Logging `toml:"logging" yaml:"logging"`
	Jobs    int     `toml:"jobs" yaml:"jobs"`
}

func Default() Config {
	return Config{
		Padding: Padding{Lead: 120, Trail: 120},
		Merge: Merge{
			MaxDuration:   480,
			Tolerance:     30,
			FoldThreshold: 120,
		},
		Extract: Extract{
			Snap:           snap.ModeEven,
			KeyframeWindow: 10,
			KeyframeScan:   1800,
			AudioFallback:  true,
		},
		Tools:   Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe"},
		Logging: Logging{Level: "info", Format: "console"},
		Jobs:    1,
	}
}

// Load decodes the file at path over Default. The format follows the extension:
// .toml, or .yaml/.yml. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides tool paths and logging from CHAPCUT_* variables.
func (c *Config) ApplyEnv() {
	setIf(&c.Tools.FFmpeg, "CHAPCUT_FFMPEG")
	setIf(&c.Tools.FFprobe, "CHAPCUT_FFPROBE")
	setIf(&c.Logging.Level, "CHAPCUT_LOG_LEVEL")
	setIf(&c.Logging.Format, "CHAPCUT_LOG_FORMAT")
}

func setIf(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Padding.Lead < 0 {
		errs = append(errs, errors.New("padding.lead must be >= 0"))
	}
	if c.Padding.Trail < 0 {
		errs = append(errs, errors.New("padding.trail must be >= 0"))
	}
	if c.Merge.MaxDuration <= 0 {
		errs = append(errs, errors.New("merge.max_duration must be > 0"))
	}
	if c.Merge.Tolerance < 0 {
		errs = append(errs, errors.New("merge.tolerance must be >= 0"))
	}
	if c.Merge.FoldThreshold <= 0 {
		errs = append(errs, errors.New("merge.fold_threshold must be > 0"))
	}
	if err := snap.ValidMode(c.Extract.Snap); err != nil {
		errs = append(errs, fmt.Errorf("extract.snap: %w", err))
	}
	if c.Extract.KeyframeWindow < 0 || c.Extract.KeyframeScan < 0 {
		errs = append(errs, errors.New("extract keyframe window and scan must be >= 0"))
	}
	if c.Jobs < 1 {
		errs = append(errs, errors.New("jobs must be >= 1"))
	}
	return errors.Join(errs...)
}

func (c Config) Lead() time.Duration  { return Seconds(c.Padding.Lead) }
func (c Config) Trail() time.Duration { return Seconds(c.Padding.Trail) }

// Seconds converts a whole-second setting to a duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }
