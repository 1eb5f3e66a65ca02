package moderation

import (
	"reflect"
	"strings"
	"testing"
)

func TestRenderNoSpans(t *testing.T) {
	for _, text := range []string{"", "hello world", "ünïcödé text"} {
		segments := Render(text, nil)
		if len(segments) != 1 {
			t.Fatalf("expected one segment for %q got %d", text, len(segments))
		}
		seg := segments[0]
		if seg.Kind != SegmentPlain || seg.Text != text || seg.Start != 0 || seg.End != len([]rune(text)) {
			t.Fatalf("unexpected segment %+v", seg)
		}
	}
}

func TestRenderSingleSpan(t *testing.T) {
	text := strings.Repeat("a", 5) + "bad" + strings.Repeat("c", 12)
	segments := Render(text, []Span{{Start: 5, End: 8, Label: "insult"}})

	expected := []Segment{
		{Kind: SegmentPlain, Start: 0, End: 5, Text: "aaaaa"},
		{Kind: SegmentHighlight, Start: 5, End: 8, Label: "insult", Text: "bad"},
		{Kind: SegmentPlain, Start: 8, End: 20, Text: strings.Repeat("c", 12)},
	}
	if !reflect.DeepEqual(segments, expected) {
		t.Fatalf("expected %+v got %+v", expected, segments)
	}
}

func TestRenderUnorderedAndTies(t *testing.T) {
	text := "you idiot, I will hurt you"
	spans := []Span{
		{Start: 18, End: 22, Label: "threat"},
		{Start: 4, End: 9, Label: "insult"},
		{Start: 4, End: 9, Label: "toxic"},
	}
	segments := Render(text, spans)

	labels := []string{}
	for _, seg := range segments {
		if seg.Kind == SegmentHighlight {
			labels = append(labels, seg.Label)
		}
	}
	// equal starts keep their received order
	if !reflect.DeepEqual(labels, []string{"insult", "toxic", "threat"}) {
		t.Fatalf("unexpected highlight order %v", labels)
	}
	if segments[0].Text != "you " {
		t.Fatalf("expected leading plain segment, got %+v", segments[0])
	}
	if last := segments[len(segments)-1]; last.Kind != SegmentPlain || last.Text != " you" {
		t.Fatalf("expected trailing plain segment, got %+v", last)
	}
}

func TestRenderOverlapIsNotClipped(t *testing.T) {
	text := "abcdefghij"
	segments := Render(text, []Span{{Start: 0, End: 6, Label: "toxic"}, {Start: 2, End: 4, Label: "insult"}})

	expected := []Segment{
		{Kind: SegmentHighlight, Start: 0, End: 6, Label: "toxic", Text: "abcdef"},
		{Kind: SegmentHighlight, Start: 2, End: 4, Label: "insult", Text: "cd"},
		{Kind: SegmentPlain, Start: 4, End: 10, Text: "efghij"},
	}
	if !reflect.DeepEqual(segments, expected) {
		t.Fatalf("expected %+v got %+v", expected, segments)
	}
}

func TestRenderZeroWidthAndClamp(t *testing.T) {
	text := "short"
	segments := Render(text, []Span{{Start: 2, End: 2, Label: "toxic"}, {Start: 3, End: 40, Label: "insult"}})

	if segments[1].Kind != SegmentHighlight || segments[1].Text != "" {
		t.Fatalf("expected empty highlight, got %+v", segments[1])
	}
	last := segments[len(segments)-1]
	if last.Kind != SegmentHighlight || last.End != 5 || last.Text != "rt" {
		t.Fatalf("expected clamped highlight, got %+v", last)
	}
}

func TestRenderRuneOffsets(t *testing.T) {
	text := "héllo wörld"
	segments := Render(text, []Span{{Start: 6, End: 11, Label: "toxic"}})
	if segments[1].Text != "wörld" {
		t.Fatalf("expected rune based slicing, got %q", segments[1].Text)
	}
}

func TestRenderIdempotent(t *testing.T) {
	text := "first second third"
	spans := []Span{{Start: 13, End: 18, Label: "threat"}, {Start: 0, End: 5, Label: "insult"}}
	first := Render(text, spans)
	second := Render(text, spans)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output, got %+v and %+v", first, second)
	}
	if spans[0].Label != "threat" {
		t.Fatalf("render must not reorder the caller's spans")
	}
}
