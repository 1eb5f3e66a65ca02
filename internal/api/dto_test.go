package api

import (
	"testing"

	"github.com/KhubaibAhamed/SentinelAI/internal/detector"
	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/store"
)

func TestStateFromSessionAction(t *testing.T) {
	blocked := &moderation.ClassificationResult{Scores: moderation.ScoreSet{moderation.Threat: 0.95}}

	tests := []struct {
		name     string
		state    detector.State
		expected moderation.Action
	}{
		{"no result", detector.State{Text: "hello there"}, moderation.ActionUnknown},
		{"failed", detector.State{Text: "hello there", Error: detector.FailureMessage}, moderation.ActionUnknown},
		{"blocked", detector.State{Text: "i will kill you", Result: blocked}, moderation.ActionBlock},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dto := StateFromSession(tc.state)
			if dto.Action != tc.expected {
				t.Fatalf("expected %s got %s", tc.expected, dto.Action)
			}
			if dto.Segments == nil {
				t.Fatalf("expected non-nil segments")
			}
		})
	}
}

func TestFromEntryCarriesReviewer(t *testing.T) {
	dto := FromEntry(store.Entry{MessageID: "m1", Action: "FLAG", ReasonCode: "identity_hate", ReviewerID: store.AutoReviewer})
	if dto.ReviewerID != store.AutoReviewer || dto.Reason != "Identity Hate" {
		t.Fatalf("unexpected dto %+v", dto)
	}
}
