package match

// Match is a phrase occurrence expressed in rune offsets of the searched text.
type Match struct {
	Start int
	End   int
	Text  string
}

// FindPhrase returns every non-overlapping occurrence of the folded phrase within tokens.
func FindPhrase(text string, tokens []Token, phrase []string) []Match {
	if len(phrase) == 0 || len(tokens) < len(phrase) {
		return nil
	}
	runes := []rune(text)
	var out []Match
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		if !phraseAt(tokens, i, phrase) {
			continue
		}
		first, last := tokens[i], tokens[i+len(phrase)-1]
		out = append(out, Match{Start: first.Start, End: last.End, Text: string(runes[first.Start:last.End])})
		i += len(phrase) - 1
	}
	return out
}

func phraseAt(tokens []Token, at int, phrase []string) bool {
	for j, word := range phrase {
		if tokens[at+j].Norm != word {
			return false
		}
	}
	return true
}
