package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
)

// payload is the structured answer requested from the model. Pointer fields let us tell
// a missing key from a zero value.
type payload struct {
	Scores      map[string]*float64 `json:"scores"`
	Spans       *[]spanPayload      `json:"spans"`
	Explanation *string             `json:"explanation"`
}

type spanPayload struct {
	Start json.RawMessage `json:"start"`
	End   json.RawMessage `json:"end"`
	Label *string         `json:"label"`
	Text  *string         `json:"text"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// parsePayload decodes and validates the model answer for text. Any schema violation
// yields a ClassificationError wrapping a *ProtocolError.
func parsePayload(content string, text string) (moderation.ScoreSet, []moderation.Span, string, error) {
	var raw payload
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, nil, "", protocolErr("payload", fmt.Sprintf("cannot be decoded: %v", err))
	}

	scores, err := validateScores(raw.Scores)
	if err != nil {
		return nil, nil, "", err
	}

	if raw.Spans == nil {
		return nil, nil, "", protocolErr("spans", "is required")
	}
	runes := []rune(text)
	spans := make([]moderation.Span, 0, len(*raw.Spans))
	for i, item := range *raw.Spans {
		span, err := validateSpan(i, item, runes)
		if err != nil {
			return nil, nil, "", err
		}
		spans = append(spans, span)
	}

	if raw.Explanation == nil {
		return nil, nil, "", protocolErr("explanation", "is required")
	}

	return scores, spans, strings.TrimSpace(*raw.Explanation), nil
}

func validateScores(raw map[string]*float64) (moderation.ScoreSet, error) {
	if raw == nil {
		return nil, protocolErr("scores", "is required")
	}
	scores := make(moderation.ScoreSet, len(moderation.Categories))
	for _, category := range moderation.Categories {
		value, ok := raw[string(category)]
		if !ok || value == nil {
			return nil, protocolErr("scores."+string(category), "is required")
		}
		v := *value
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, protocolErr("scores."+string(category), fmt.Sprintf("out of range: %v", v))
		}
		scores[category] = v
	}
	return scores, nil
}

func validateSpan(index int, item spanPayload, runes []rune) (moderation.Span, error) {
	field := fmt.Sprintf("spans[%d]", index)
	if isNullJSON(item.Start) {
		return moderation.Span{}, protocolErr(field+".start", "is required")
	}
	if isNullJSON(item.End) {
		return moderation.Span{}, protocolErr(field+".end", "is required")
	}
	if item.Label == nil {
		return moderation.Span{}, protocolErr(field+".label", "is required")
	}
	if item.Text == nil {
		return moderation.Span{}, protocolErr(field+".text", "is required")
	}
	start, err := parseOffset(item.Start)
	if err != nil {
		return moderation.Span{}, protocolErr(field+".start", "must be an integer")
	}
	end, err := parseOffset(item.End)
	if err != nil {
		return moderation.Span{}, protocolErr(field+".end", "must be an integer")
	}

	span := moderation.Span{
		Start: int(start),
		End:   int(end),
		Label: moderation.NormalizeLabel(*item.Label),
		Text:  *item.Text,
	}
	span = alignSpan(span, runes)

	switch {
	case span.Start < 0:
		return moderation.Span{}, protocolErr(field+".start", "must not be negative")
	case span.End < span.Start:
		return moderation.Span{}, protocolErr(field+".end", "must not precede start")
	case span.End > len(runes):
		return moderation.Span{}, protocolErr(field+".end", fmt.Sprintf("exceeds text length %d", len(runes)))
	}
	span.Text = string(runes[span.Start:span.End])
	return span, nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// parseOffset accepts only a bare JSON integer. Quoted numbers and fractions are rejected.
func parseOffset(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' {
		return 0, errors.New("not a number")
	}
	return strconv.ParseInt(string(trimmed), 10, 64)
}

// alignSpan moves a span onto the nearest verbatim occurrence of its cached text when
// the reported offsets point elsewhere. Models are unreliable with offsets but quote
// the flagged words accurately.
func alignSpan(span moderation.Span, runes []rune) moderation.Span {
	needle := []rune(span.Text)
	if len(needle) == 0 || len(needle) > len(runes) {
		return span
	}
	if span.Start >= 0 && span.End <= len(runes) && span.Start <= span.End &&
		string(runes[span.Start:span.End]) == span.Text {
		return span
	}

	best := -1
	bestDistance := 0
	for i := 0; i+len(needle) <= len(runes); i++ {
		if string(runes[i:i+len(needle)]) != span.Text {
			continue
		}
		distance := i - span.Start
		if distance < 0 {
			distance = -distance
		}
		if best < 0 || distance < bestDistance {
			best, bestDistance = i, distance
		}
	}
	if best < 0 {
		return span
	}
	span.Start = best
	span.End = best + len(needle)
	return span
}

func normalizeJSONBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.IndexRune(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if strings.HasSuffix(trimmed, "```") {
			trimmed = trimmed[:len(trimmed)-3]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end >= start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}
