package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KhubaibAhamed/SentinelAI/internal/ai"
	"github.com/KhubaibAhamed/SentinelAI/internal/config"
	"github.com/KhubaibAhamed/SentinelAI/internal/moderation"
	"github.com/KhubaibAhamed/SentinelAI/internal/scoring"
)

type output struct {
	Action   moderation.Action               `json:"action"`
	Result   moderation.ClassificationResult `json:"result"`
	Segments []moderation.Segment            `json:"segments"`
}

func main() {
	var (
		text     = flag.String("text", "", "Text to classify (reads stdin when empty)")
		asJSON   = flag.Bool("json", false, "Print the full result as JSON")
		lexicon  = flag.Bool("lexicon", false, "Use the offline lexicon classifier (env DISABLE_AI)")
		lexPath  = flag.String("lexicon-path", "", "Lexicon file (env LEXICON_PATH, built-in when empty)")
		timeout  = flag.Duration("timeout", 60*time.Second, "Overall deadline for the classification")
		logLevel = flag.String("log-level", "warn", "Log level")
	)
	flag.Parse()

	if parsed, err := logrus.ParseLevel(*logLevel); err == nil {
		logrus.SetLevel(parsed)
	}
	cfg := config.Load()
	if *lexPath == "" {
		*lexPath = cfg.LexiconPath
	}

	input, err := readInput(*text, os.Stdin)
	if err != nil {
		logrus.Fatalf("read input: %v", err)
	}

	classifier, err := newClassifier(cfg, *lexicon || cfg.DisableAI, *lexPath)
	if err != nil {
		logrus.Fatalf("classifier: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	result, err := classifier.Classify(ctx, input)
	if err != nil {
		logrus.Fatalf("classify: %v", err)
	}

	out := output{
		Action:   moderation.Decide(result.Scores),
		Result:   result,
		Segments: moderation.Render(input, result.Spans),
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logrus.Fatalf("encode: %v", err)
		}
		return
	}
	printReport(os.Stdout, out)
}

func readInput(flagText string, stdin io.Reader) (string, error) {
	text := flagText
	if strings.TrimSpace(text) == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		text = strings.TrimRight(string(data), "\r\n")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text supplied; use -text or pipe text on stdin")
	}
	return text, nil
}

func newClassifier(cfg *config.Cfg, offline bool, lexiconPath string) (ai.Classifier, error) {
	if offline {
		return scoring.NewLexiconClassifier(lexiconPath)
	}
	client, err := ai.NewClient(cfg.AI)
	if errors.Is(err, ai.ErrDisabled) {
		return nil, errors.New("OPENAI_API_KEY is not set; pass -lexicon to classify offline")
	}
	return client, err
}

func printReport(w io.Writer, out output) {
	fmt.Fprintf(w, "action:  %s\n", out.Action)
	fmt.Fprintf(w, "model:   %s (%dms)\n", out.Result.ModelVersion, out.Result.LatencyMs)
	fmt.Fprintln(w, "scores:")
	for _, category := range moderation.Categories {
		fmt.Fprintf(w, "  %-14s %.2f\n", category, out.Result.Scores[category])
	}
	fmt.Fprintf(w, "text:    %s\n", highlight(out.Segments))
	if out.Result.Explanation != "" {
		fmt.Fprintf(w, "reason:  %s\n", out.Result.Explanation)
	}
}

func highlight(segments []moderation.Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		if seg.Kind == moderation.SegmentHighlight {
			fmt.Fprintf(&b, "[%s: %s]", seg.Label, seg.Text)
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
