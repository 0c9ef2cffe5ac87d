package transcript

import (
	"sort"
	"strings"
)

// TemporalWindow returns the segments whose start time falls within
// window/2 on either side of the given timestamp.
func TemporalWindow(segments []Segment, timestamp, windowSeconds float64) []Segment {
	half := windowSeconds / 2
	lo := timestamp - half
	if lo < 0 {
		lo = 0
	}
	hi := timestamp + half

	var out []Segment
	for _, seg := range segments {
		if seg.Start >= lo && seg.Start <= hi {
			out = append(out, seg)
		}
	}
	return out
}

// RankByRelevance orders windowed segments by keyword overlap with the
// visual label and the user query (descending), ties broken by start time,
// and joins them into one context string. The full window is always kept —
// ranking reorders, it never drops.
func RankByRelevance(window []Segment, visualLabel, query string) string {
	if len(window) == 0 {
		return ""
	}

	keywords := make(map[string]struct{})
	for _, text := range []string{visualLabel, query} {
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,!?;:'\"()[]{}")
			if len(w) > 2 {
				keywords[w] = struct{}{}
			}
		}
	}

	type scored struct {
		score int
		seg   Segment
	}
	entries := make([]scored, 0, len(window))
	for _, seg := range window {
		lower := strings.ToLower(seg.Text)
		score := 0
		for kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		entries = append(entries, scored{score: score, seg: seg})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].seg.Start < entries[j].seg.Start
	})

	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.seg.Text)
	}
	return strings.Join(parts, " ")
}
