package engine

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gigshield/reviewcore/internal/review/textnorm"
)

//go:embed keywords.yaml
var defaultKeywordsYAML []byte

// Source weights and match factors for keyword scoring.
const (
	titleWeight       = 3.0
	descriptionWeight = 2.0
	bodyWeight        = 1.0

	exactFactor = 1.0
	fuzzyFactor = 0.5

	// fuzzyMinSimilarity is the token similarity (0-100) for a near match.
	fuzzyMinSimilarity = 80.0
)

type keywordFile struct {
	Keywords []string `yaml:"keywords"`
}

// KeywordSources is the text the keyword gate scores.
type KeywordSources struct {
	Title       string
	Description string
	Body        string
}

// KeywordMatch is the best match of one keyword across all sources.
type KeywordMatch struct {
	Keyword string
	Source  string
	Exact   bool
	Score   float64
}

// KeywordMatcher scores text against a keyword list. Safe for concurrent use.
type KeywordMatcher struct {
	keywords []keyword
}

type keyword struct {
	term   string
	tokens []string
}

// NewKeywordMatcher builds a matcher from terms, skipping blanks and duplicates.
func NewKeywordMatcher(terms []string) *KeywordMatcher {
	m := &KeywordMatcher{}
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		tokens := textnorm.Tokens(term)
		key := strings.Join(tokens, " ")
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		m.keywords = append(m.keywords, keyword{term: term, tokens: tokens})
	}
	return m
}

// LoadKeywordMatcher reads a keyword YAML file, or the built-in list when
// path is empty.
func LoadKeywordMatcher(path string) (*KeywordMatcher, error) {
	data := defaultKeywordsYAML
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read keyword file: %w", err)
		}
	}

	var f keywordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse keyword file: %w", err)
	}
	m := NewKeywordMatcher(f.Keywords)
	if len(m.keywords) == 0 {
		return nil, fmt.Errorf("keyword file %q defines no keywords", path)
	}
	return m, nil
}

// Len returns the number of distinct keywords.
func (m *KeywordMatcher) Len() int { return len(m.keywords) }

// Score sums, over all keywords, the best weighted match across sources.
func (m *KeywordMatcher) Score(src KeywordSources) float64 {
	score, _ := m.Match(src)
	return score
}

// Match returns the score and the keywords that contributed to it.
func (m *KeywordMatcher) Match(src KeywordSources) (float64, []KeywordMatch) {
	sources := []struct {
		name   string
		weight float64
		tokens []string
	}{
		{"title", titleWeight, textnorm.Tokens(src.Title)},
		{"description", descriptionWeight, textnorm.Tokens(src.Description)},
		{"body", bodyWeight, textnorm.Tokens(src.Body)},
	}

	var total float64
	var matches []KeywordMatch
	for _, kw := range m.keywords {
		var best KeywordMatch
		for _, s := range sources {
			factor, exact := matchFactor(s.tokens, kw.tokens)
			if v := s.weight * factor; v > best.Score {
				best = KeywordMatch{Keyword: kw.term, Source: s.name, Exact: exact, Score: v}
			}
		}
		if best.Score > 0 {
			total += best.Score
			matches = append(matches, best)
		}
	}
	return total, matches
}

// matchFactor returns exactFactor for an exact phrase, fuzzyFactor when a
// window of the same token length is similar enough, otherwise zero.
func matchFactor(text, phrase []string) (float64, bool) {
	if textnorm.ContainsPhrase(text, phrase) {
		return exactFactor, true
	}
	n := len(phrase)
	if n == 0 || n > len(text) {
		return 0, false
	}
	want := strings.Join(phrase, " ")
	for i := 0; i+n <= len(text); i++ {
		if Similarity(strings.Join(text[i:i+n], " "), want) >= fuzzyMinSimilarity {
			return fuzzyFactor, false
		}
	}
	return 0, false
}
