package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
)

func TestReadInput(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		stdin    string
		expected string
		wantErr  bool
	}{
		{"flag wins", "from flag", "from stdin", "from flag", false},
		{"stdin", "", "piped text\n", "piped text", false},
		{"empty", "  ", "\n", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readInput(tc.flag, strings.NewReader(tc.stdin))
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if got != tc.expected {
				t.Fatalf("expected %q got %q", tc.expected, got)
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	text := "you are a fool"
	spans := []moderation.Span{{Start: 10, End: 14, Label: "insult", Text: "fool"}}
	out := output{
		Action: moderation.ActionFlag,
		Result: moderation.ClassificationResult{
			Scores:       moderation.ScoreSet{moderation.Insult: 0.7},
			Spans:        spans,
			ModelVersion: "test",
			Explanation:  "mild insult",
		},
		Segments: moderation.Render(text, spans),
	}

	var buf bytes.Buffer
	printReport(&buf, out)
	report := buf.String()
	for _, want := range []string{"action:  FLAG", "insult         0.70", "you are a [insult: fool]", "reason:  mild insult"} {
		if !strings.Contains(report, want) {
			t.Fatalf("expected %q in report:\n%s", want, report)
		}
	}
}
