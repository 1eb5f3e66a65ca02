package moderation

import "strings"

// Category names one independent toxicity dimension.
type Category string

const (
	Toxic        Category = "toxic"
	SevereToxic  Category = "severe_toxic"
	Obscene      Category = "obscene"
	Threat       Category = "threat"
	Insult       Category = "insult"
	IdentityHate Category = "identity_hate"
)

// Categories lists every category in display order.
var Categories = []Category{Toxic, SevereToxic, Obscene, Threat, Insult, IdentityHate}

// ParseCategory normalizes a label such as "Identity Hate" into a known category.
func ParseCategory(label string) (Category, bool) {
	key := NormalizeLabel(label)
	for _, c := range Categories {
		if string(c) == key {
			return c, true
		}
	}
	return Category(key), false
}

// NormalizeLabel lowercases a label and joins words with underscores.
func NormalizeLabel(label string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(label)))
	return strings.Join(fields, "_")
}

// Title renders the category the way the dashboard shows it ("identity_hate" -> "Identity Hate").
func (c Category) Title() string {
	parts := strings.Split(string(c), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// ScoreSet maps each category to a risk value in [0,1]. Values are independent and do not
// need to sum to one.
type ScoreSet map[Category]float64

// Max returns the highest score. ok is false for an empty set.
func (s ScoreSet) Max() (max float64, ok bool) {
	for _, v := range s {
		if !ok || v > max {
			max = v
			ok = true
		}
	}
	return max, ok
}

// Top returns the category holding the highest score, preferring Categories order on ties.
func (s ScoreSet) Top() (Category, float64, bool) {
	var (
		top   Category
		value float64
		found bool
	)
	for _, c := range Categories {
		v, ok := s[c]
		if !ok {
			continue
		}
		if !found || v > value {
			top, value, found = c, v, true
		}
	}
	return top, value, found
}

// Clone returns an independent copy.
func (s ScoreSet) Clone() ScoreSet {
	if s == nil {
		return nil
	}
	out := make(ScoreSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Span is a labelled character range flagged by the classifier. Offsets are rune indices
// into the classified text.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// ClassificationResult is the outcome of one successful classification call.
type ClassificationResult struct {
	Scores       ScoreSet `json:"scores"`
	Spans        []Span   `json:"spans"`
	ModelVersion string   `json:"model_version"`
	LatencyMs    int64    `json:"latency_ms"`
	Explanation  string   `json:"explanation"`
}

// Clone returns a deep copy so holders never share mutable state.
func (r ClassificationResult) Clone() ClassificationResult {
	out := r
	out.Scores = r.Scores.Clone()
	if r.Spans != nil {
		out.Spans = append([]Span(nil), r.Spans...)
	}
	return out
}
