package scoring

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/KhubaibAhamed/SentinelAI/internal/ai"
	"github.com/KhubaibAhamed/SentinelAI/internal/match"
	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/util"
)

// LexiconModelVersion is stamped on every lexicon result.
const LexiconModelVersion = "sentinel-lexicon-v1"

//go:embed lexicon.yaml
var defaultLexicon []byte

type lexiconTerm struct {
	category moderation.Category
	severity int
	term     string
	phrase   []string
}

// LexiconClassifier scores text offline against category term lists.
type LexiconClassifier struct {
	mu     sync.RWMutex
	terms  []lexiconTerm
	source string
}

// NewLexiconClassifier loads the lexicon at path, or the built-in one when path is empty.
func NewLexiconClassifier(path string) (*LexiconClassifier, error) {
	c := &LexiconClassifier{}
	if err := c.Reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the term lists. The previous lists stay active when loading fails.
func (c *LexiconClassifier) Reload(path string) error {
	data := defaultLexicon
	source := "embedded"
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("read lexicon: %w", err)
		}
		data = raw
		source = path
	}
	terms, err := parseLexicon(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.terms = terms
	c.source = source
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{"source": source, "terms": len(terms)}).Info("lexicon loaded")
	return nil
}

// parseLexicon decodes a YAML (or JSON) document of category -> severity -> terms.
func parseLexicon(data []byte) ([]lexiconTerm, error) {
	var raw map[string]map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal lexicon: %w", err)
	}

	var terms []lexiconTerm
	for label, levels := range raw {
		category, ok := moderation.ParseCategory(label)
		if !ok {
			return nil, fmt.Errorf("lexicon: unknown category %q", label)
		}
		for level, list := range levels {
			severity, err := strconv.Atoi(strings.TrimSpace(level))
			if err != nil || severity < 1 || severity > 5 {
				return nil, fmt.Errorf("lexicon: %s severity %q outside 1-5", category, level)
			}
			for _, term := range list {
				phrase := match.NormalizeTerm(term)
				if len(phrase) == 0 {
					continue
				}
				terms = append(terms, lexiconTerm{
					category: category,
					severity: severity,
					term:     strings.Join(phrase, " "),
					phrase:   phrase,
				})
			}
		}
	}
	if len(terms) == 0 {
		return nil, errors.New("lexicon has no terms")
	}

	// map iteration is random; keep span output stable across reloads
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].category != terms[j].category {
			return categoryIndex(terms[i].category) < categoryIndex(terms[j].category)
		}
		if terms[i].severity != terms[j].severity {
			return terms[i].severity > terms[j].severity
		}
		return terms[i].term < terms[j].term
	})
	return terms, nil
}

// ModelVersion reports the version string stamped on results.
func (c *LexiconClassifier) ModelVersion() string {
	return LexiconModelVersion
}

// Source names where the active lexicon came from.
func (c *LexiconClassifier) Source() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Size returns the number of active terms.
func (c *LexiconClassifier) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.terms)
}

// Classify matches text against the lexicon. The only failure is a cancelled context.
func (c *LexiconClassifier) Classify(ctx context.Context, text string) (moderation.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return moderation.ClassificationResult{}, &ai.ClassificationError{Cause: err}
	}
	timer := util.StartTimer()

	c.mu.RLock()
	terms := c.terms
	c.mu.RUnlock()

	tokens := match.Tokenize(text)
	severity := make(map[moderation.Category]int)
	hits := make(map[moderation.Category][]string)
	spans := make([]moderation.Span, 0)
	for _, term := range terms {
		found := match.FindPhrase(text, tokens, term.phrase)
		if len(found) == 0 {
			continue
		}
		if term.severity > severity[term.category] {
			severity[term.category] = term.severity
		}
		hits[term.category] = append(hits[term.category], term.term)
		for _, m := range found {
			spans = append(spans, moderation.Span{Start: m.Start, End: m.End, Label: string(term.category), Text: m.Text})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	return moderation.ClassificationResult{
		Scores:       scoreSeverities(severity),
		Spans:        spans,
		ModelVersion: LexiconModelVersion,
		LatencyMs:    timer.ElapsedMs(),
		Explanation:  explain(hits),
	}, nil
}

// scoreSeverities maps severities onto [0,1]. Any specific category also lifts the general
// toxic score to at least 90% of the strongest one.
func scoreSeverities(severity map[moderation.Category]int) moderation.ScoreSet {
	scores := make(moderation.ScoreSet, len(moderation.Categories))
	var strongest float64
	for _, category := range moderation.Categories {
		value := float64(severity[category]) / 5
		scores[category] = value
		if category != moderation.Toxic && value > strongest {
			strongest = value
		}
	}
	if lifted := strongest * 0.9; lifted > scores[moderation.Toxic] {
		scores[moderation.Toxic] = lifted
	}
	for category, value := range scores {
		scores[category] = math.Round(value*100) / 100
	}
	return scores
}

func explain(hits map[moderation.Category][]string) string {
	if len(hits) == 0 {
		return "No toxic language detected."
	}
	var parts []string
	for _, category := range moderation.Categories {
		terms := dedupe(hits[category])
		if len(terms) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", category.Title(), strings.Join(terms, ", ")))
	}
	return "Matched lexicon terms for " + strings.Join(parts, "; ") + "."
}

func categoryIndex(category moderation.Category) int {
	for i, c := range moderation.Categories {
		if c == category {
			return i
		}
	}
	return len(moderation.Categories)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	sorted := append([]string(nil), in...)
	sort.Strings(sorted)
	out := make([]string, 0, len(sorted))
	var prev string
	for _, item := range sorted {
		if item == prev {
			continue
		}
		out = append(out, item)
		prev = item
	}
	return out
}

var _ ai.Classifier = (*LexiconClassifier)(nil)
