package match

import (
	"reflect"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Idiot", "idiot"},
		{"1d10t", "idiot"},
		{"$hit", "shit"},
		{"th!s", "this"},
		{"stuuupid", "stupid"},
		{"good", "good"},
		{"1000", "1000"},
		{"don't", "dont"},
		{"  ", ""},
	}
	for _, tc := range tests {
		if got := Fold(tc.in); got != tc.expected {
			t.Fatalf("Fold(%q): expected %q got %q", tc.in, tc.expected, got)
		}
	}
}

func TestTokenizeOffsets(t *testing.T) {
	tokens := Tokenize("héllo, you 1d10t!!")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens got %+v", tokens)
	}
	last := tokens[2]
	if last.Text != "1d10t" || last.Norm != "idiot" || last.Start != 11 || last.End != 16 {
		t.Fatalf("unexpected token %+v", last)
	}
	if first := tokens[0]; first.Start != 0 || first.End != 5 || first.Norm != "héllo" {
		t.Fatalf("unexpected first token %+v", first)
	}
}

func TestTokenizeQuotes(t *testing.T) {
	tokens := Tokenize("'quoted' word")
	if len(tokens) != 2 || tokens[0].Text != "quoted" || tokens[0].Start != 1 || tokens[0].End != 7 {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
	if got := Tokenize("' ! '"); len(got) != 0 {
		t.Fatalf("expected punctuation to produce no tokens got %+v", got)
	}
}

func TestNormalizeTerm(t *testing.T) {
	got := NormalizeTerm("Kill You")
	if !reflect.DeepEqual(got, []string{"kill", "you"}) {
		t.Fatalf("unexpected phrase %v", got)
	}
}

func TestFindPhrase(t *testing.T) {
	text := "I will KILL you, k1ll y0u now"
	tokens := Tokenize(text)
	matches := FindPhrase(text, tokens, NormalizeTerm("kill you"))
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches got %+v", matches)
	}
	if matches[0].Start != 7 || matches[0].End != 15 || matches[0].Text != "KILL you" {
		t.Fatalf("unexpected first match %+v", matches[0])
	}
	if matches[1].Text != "k1ll y0u" {
		t.Fatalf("unexpected second match %+v", matches[1])
	}
	if got := FindPhrase(text, tokens, nil); got != nil {
		t.Fatalf("expected no matches for empty phrase")
	}
}
