package intervals

import (
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/chapcut/internal/types"
)

// Merge turns chapter markers into padded, non-overlapping intervals ordered by
// start. A marker whose padded start is at or before the end of the open
// interval is folded into it. Labels of folded markers are deduplicated,
// sorted and joined with "_".
func Merge(markers []types.ChapterMarker, lead, trail time.Duration) []types.PaddedInterval {
	if len(markers) == 0 {
		return nil
	}

	sorted := make([]types.ChapterMarker, len(markers))
	copy(sorted, markers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	var out []types.PaddedInterval
	cur := open(sorted[0], lead, trail)
	labels := map[string]struct{}{sorted[0].Label: {}}

	for _, m := range sorted[1:] {
		start := paddedStart(m.At, lead)
		if start <= cur.End {
			if end := m.At + trail; end > cur.End {
				cur.End = end
			}
			labels[m.Label] = struct{}{}
			cur.Markers = append(cur.Markers, start)
			continue
		}
		cur.Label = joinLabels(labels)
		out = append(out, cur)

		cur = open(m, lead, trail)
		labels = map[string]struct{}{m.Label: {}}
	}
	cur.Label = joinLabels(labels)
	return append(out, cur)
}

func open(m types.ChapterMarker, lead, trail time.Duration) types.PaddedInterval {
	start := paddedStart(m.At, lead)
	return types.PaddedInterval{
		Start:   start,
		End:     m.At + trail,
		Markers: []time.Duration{start},
	}
}

func paddedStart(at, lead time.Duration) time.Duration {
	if at-lead < 0 {
		return 0
	}
	return at - lead
}

func joinLabels(set map[string]struct{}) string {
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return strings.Join(labels, "_")
}
