package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	ClipsDir  = "clips"
	MergedDir = "merged_videos"

	ChaptersSuffix = "_chapters.txt"
)

var (
	// whitespace plus / \ : * ? " < > |
	unsafeChars = regexp.MustCompile(`[/\\:*?"<>|\s]`)
	underscores = regexp.MustCompile(`_{2,}`)
)

// VideoExts lists the extensions treated as source recordings.
var VideoExts = []string{".mp4", ".mkv", ".mov"}

func IsVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range VideoExts {
		if ext == e {
			return true
		}
	}
	return false
}

// VideoName is the file name without directory and extension.
func VideoName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ChaptersPath returns the chapter file expected next to a video.
func ChaptersPath(videoPath string) string {
	return filepath.Join(filepath.Dir(videoPath), VideoName(videoPath)+ChaptersSuffix)
}

// VideoForChapters maps "<dir>/<name>_chapters.txt" back to the video name. ok
// is false for any other file.
func VideoForChapters(chaptersPath string) (name string, ok bool) {
	base := filepath.Base(chaptersPath)
	if !strings.HasSuffix(base, ChaptersSuffix) {
		return "", false
	}
	name = strings.TrimSuffix(base, ChaptersSuffix)
	return name, name != ""
}

// SanitizeLabel makes a chapter label safe for a file name: accents are
// stripped, and whitespace and path-hostile characters become "_".
func SanitizeLabel(label string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, label)
	if err != nil {
		s = label
	}
	s = unsafeChars.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// ClipFile names the clip for the index-th (1-based) interval of video.
func ClipFile(video string, index int, label string) string {
	l := SanitizeLabel(label)
	if l == "" {
		return fmt.Sprintf("%s_%d.mp4", video, index)
	}
	return fmt.Sprintf("%s_%d_%s.mp4", video, index, l)
}

// MergedFile names the index-th (1-based) merged output of video.
func MergedFile(video string, index int) string {
	return fmt.Sprintf("%s_merged_%d.mp4", video, index)
}
