package chapters

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/chapcut/internal/types"
)

const separator = " - "

// maxTimestamp is the largest accepted marker, 9999:59:59.
const maxTimestamp = 9999*3600 + 59*60 + 59

// ErrNoChapters is returned by Load when the chapter file does not exist.
var ErrNoChapters = errors.New("chapter file not found")

// Load reads the chapter file at path.
func Load(path string) ([]types.ChapterMarker, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoChapters, path)
		}
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads "HH:MM:SS - label" lines. Lines without the separator are
// ignored; a line with the separator and a bad timestamp is an error. Markers
// come back in file order.
func Parse(r io.Reader) ([]types.ChapterMarker, error) {
	var out []types.ChapterMarker
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		ts, label, ok := strings.Cut(sc.Text(), separator)
		if !ok {
			continue
		}
		at, err := ParseTimestamp(strings.TrimSpace(ts))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, types.ChapterMarker{At: at, Label: strings.TrimSpace(label)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read chapters: %w", err)
	}
	return out, nil
}

// ParseTimestamp parses HH:MM:SS into a whole number of seconds.
func ParseTimestamp(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("expected HH:MM:SS, got %q", s)
	}
	var total int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("expected HH:MM:SS, got %q", s)
		}
		if n > maxTimestamp {
			return 0, fmt.Errorf("timestamp %q out of range", s)
		}
		total = total*60 + n
		if total > maxTimestamp {
			return 0, fmt.Errorf("timestamp %q out of range", s)
		}
	}
	return time.Duration(total) * time.Second, nil
}

// FormatTimestamp renders d as HH:MM:SS, truncating fractions.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
