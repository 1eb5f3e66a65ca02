package moderation

import "sort"

// SegmentKind tags a piece of the rendering plan.
type SegmentKind string

const (
	SegmentPlain     SegmentKind = "plain"
	SegmentHighlight SegmentKind = "highlight"
)

// Segment is a contiguous range of the source text, either plain or highlighted.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Start int         `json:"start"`
	End   int         `json:"end"`
	Label string      `json:"label,omitempty"`
	Text  string      `json:"text"`
}

// Render walks spans in start order and produces alternating plain and highlighted
// segments. Overlapping spans are emitted as received, so segments may cover the same
// text twice. Offsets outside the text are clamped.
func Render(text string, spans []Span) []Segment {
	runes := []rune(text)
	length := len(runes)

	if len(spans) == 0 {
		return []Segment{plain(runes, 0, length)}
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	segments := make([]Segment, 0, len(sorted)*2+1)
	cursor := 0
	for _, span := range sorted {
		start := clamp(span.Start, 0, length)
		end := clamp(span.End, start, length)
		if start > cursor {
			segments = append(segments, plain(runes, cursor, start))
		}
		segments = append(segments, Segment{
			Kind:  SegmentHighlight,
			Start: start,
			End:   end,
			Label: span.Label,
			Text:  string(runes[start:end]),
		})
		cursor = end
	}
	if cursor < length {
		segments = append(segments, plain(runes, cursor, length))
	}
	return segments
}

func plain(runes []rune, start, end int) Segment {
	return Segment{Kind: SegmentPlain, Start: start, End: end, Text: string(runes[start:end])}
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
