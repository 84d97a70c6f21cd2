package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordMatcher_Score(t *testing.T) {
	t.Parallel()

	m := NewKeywordMatcher([]string{"scam", "identity theft", "诈骗"})

	tests := []struct {
		name string
		src  KeywordSources
		want float64
	}{
		{"title exact", KeywordSources{Title: "Spot the SCAM"}, 3},
		{"description exact", KeywordSources{Description: "beware of identity theft"}, 2},
		{"body exact", KeywordSources{Body: "a scam story"}, 1},
		{"best source wins", KeywordSources{Title: "scam", Body: "scam"}, 3},
		{"fuzzy title", KeywordSources{Title: "common scams"}, 1.5},
		{"phrase split across words", KeywordSources{Body: "identity and theft"}, 0},
		{"keywords sum", KeywordSources{Title: "scam", Description: "identity theft"}, 5},
		{"unspaced script substring", KeywordSources{Title: "警惕诈骗电话"}, 3},
		{"nothing", KeywordSources{Title: "holiday photos"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, m.Score(tt.src), 1e-9)
		})
	}
}

func TestKeywordMatcher_Match(t *testing.T) {
	t.Parallel()

	m := NewKeywordMatcher([]string{"scam", "Scam", " ", "phishing"})
	assert.Equal(t, 2, m.Len(), "blank and duplicate terms are dropped")

	score, matches := m.Match(KeywordSources{Title: "phishing", Body: "scams"})
	assert.InDelta(t, 3.5, score, 1e-9)
	require.Len(t, matches, 2)
	assert.Equal(t, KeywordMatch{Keyword: "scam", Source: "body", Exact: false, Score: 0.5}, matches[0])
	assert.Equal(t, KeywordMatch{Keyword: "phishing", Source: "title", Exact: true, Score: 3}, matches[1])
}

func TestLoadKeywordMatcher(t *testing.T) {
	t.Parallel()

	t.Run("built-in list", func(t *testing.T) {
		t.Parallel()
		m, err := LoadKeywordMatcher("")
		require.NoError(t, err)
		assert.Positive(t, m.Len())
	})

	t.Run("custom file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "keywords.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keywords:\n  - fraud\n  - scam\n"), 0o600))

		m, err := LoadKeywordMatcher(path)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Len())
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "keywords.yaml")
		require.NoError(t, os.WriteFile(path, []byte("keywords: []\n"), 0o600))

		_, err := LoadKeywordMatcher(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadKeywordMatcher(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100, Similarity("Alice", "  ALICE "), 1e-9)
	assert.InDelta(t, 100, Similarity("", ""), 1e-9)
	assert.InDelta(t, 0, Similarity("abc", ""), 1e-9)
	assert.InDelta(t, 66.667, Similarity("Alice", "Alicia"), 1e-3)
	assert.InDelta(t, 50, Similarity("小明同学", "小明"), 1e-9)
}
