package matching

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountSimilarity(t *testing.T) {
	scorer := NewScorer()

	t.Run("should return 1.0 for equal amounts", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.AmountSimilarity(100.0, 100.0, 0.01))
	})

	t.Run("should return 1.0 for two zero amounts", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.AmountSimilarity(0, 0, 0.01))
	})

	t.Run("should decay linearly within tolerance", func(t *testing.T) {
		// diff 0.05, avg 100.025, pct ~0.0005 of a 0.01 tolerance
		sim := scorer.AmountSimilarity(100.0, 100.05, 0.01)
		assert.InDelta(t, 0.995, sim, 0.001)
		assert.Greater(t, sim, 0.9)
	})

	t.Run("should decay exponentially beyond tolerance", func(t *testing.T) {
		// pct ~0.01005, just past the 0.01 tolerance
		sim := scorer.AmountSimilarity(100.0, 99.0, 0.01)
		assert.InDelta(t, 0.951, sim, 0.001)
	})

	t.Run("should approach zero for very different amounts", func(t *testing.T) {
		sim := scorer.AmountSimilarity(100.0, 10000.0, 0.01)
		assert.Less(t, sim, 0.01)
	})

	t.Run("should return 0.0 for NaN or Inf", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.AmountSimilarity(math.NaN(), 100, 0.01))
		assert.Equal(t, 0.0, scorer.AmountSimilarity(100, math.Inf(1), 0.01))
	})

	t.Run("should never exceed 1.0 or drop below 0.0", func(t *testing.T) {
		pairs := [][2]float64{{0, 100}, {-50, 50}, {1, 1e9}, {0.001, 0.002}}
		for _, p := range pairs {
			sim := scorer.AmountSimilarity(p[0], p[1], 0.01)
			assert.GreaterOrEqual(t, sim, 0.0)
			assert.LessOrEqual(t, sim, 1.0)
		}
	})
}

func TestDateSimilarity(t *testing.T) {
	scorer := NewScorer()

	t.Run("should return 1.0 for same day", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.DateSimilarity(0, 5))
	})

	t.Run("should decay linearly within tolerance", func(t *testing.T) {
		assert.InDelta(t, 0.88, scorer.DateSimilarity(3, 5), 0.0001)
		assert.InDelta(t, 0.8, scorer.DateSimilarity(5, 5), 0.0001)
	})

	t.Run("should decay exponentially beyond tolerance", func(t *testing.T) {
		assert.InDelta(t, math.Exp(-1), scorer.DateSimilarity(10, 5), 0.0001)
	})

	t.Run("should treat negative diffs as absolute", func(t *testing.T) {
		assert.Equal(t, scorer.DateSimilarity(3, 5), scorer.DateSimilarity(-3, 5))
	})
}

func TestStringSimilarity(t *testing.T) {
	scorer := NewScorer()

	t.Run("should return 1.0 for identical strings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.StringSimilarity("acme corp", "acme corp"))
	})

	t.Run("should return 0.0 when either side is empty", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.StringSimilarity("", "acme corp"))
		assert.Equal(t, 0.0, scorer.StringSimilarity("acme corp", ""))
	})

	t.Run("should score typos high", func(t *testing.T) {
		sim := scorer.StringSimilarity("office supplies staples", "office supplies staple")
		assert.Greater(t, sim, 0.9)
	})

	t.Run("should score unrelated strings low", func(t *testing.T) {
		sim := scorer.StringSimilarity("rent payment", "xylophone repair quote")
		assert.Less(t, sim, 0.5)
	})

	t.Run("should be symmetric", func(t *testing.T) {
		a, b := "payment acme corp", "acme corp payment"
		assert.InDelta(t, scorer.StringSimilarity(a, b), scorer.StringSimilarity(b, a), 1e-9)
	})
}

func TestTokenSort(t *testing.T) {
	scorer := NewScorer()

	t.Run("should neutralize word order", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.TokenSort("acme corp payment", "payment acme corp"))
	})

	t.Run("should still penalize different tokens", func(t *testing.T) {
		assert.Less(t, scorer.TokenSort("acme corp payment", "beta corp payment"), 1.0)
	})
}

func TestJaroWinkler(t *testing.T) {
	scorer := NewScorer()

	t.Run("should return 1.0 for identical strings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.JaroWinkler("MARTHA", "MARTHA"))
	})

	t.Run("should boost shared prefixes", func(t *testing.T) {
		assert.InDelta(t, 0.9611, scorer.JaroWinkler("MARTHA", "MARHTA"), 0.001)
	})

	t.Run("should return 0.0 for no common characters", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.Jaro("abc", "xyz"))
	})
}

func TestLevenshtein(t *testing.T) {
	scorer := NewScorer()

	t.Run("should compute edit distance", func(t *testing.T) {
		assert.Equal(t, 3, scorer.LevenshteinDistance("kitten", "sitting"))
		assert.Equal(t, 0, scorer.LevenshteinDistance("same", "same"))
		assert.Equal(t, 4, scorer.LevenshteinDistance("", "abcd"))
	})

	t.Run("should normalize distance by longer length", func(t *testing.T) {
		assert.InDelta(t, 1.0-3.0/7.0, scorer.Levenshtein("kitten", "sitting"), 0.0001)
	})

	t.Run("should return 1.0 for two empty strings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.Levenshtein("", ""))
	})
}

func TestSoundex(t *testing.T) {
	scorer := NewScorer()

	t.Run("should encode classic examples", func(t *testing.T) {
		assert.Equal(t, "R163", scorer.Soundex("Robert"))
		assert.Equal(t, "R163", scorer.Soundex("Rupert"))
	})

	t.Run("should match phonetically similar strings", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.SoundexMatch("Robert", "Rupert"))
		assert.Equal(t, 0.0, scorer.SoundexMatch("Robert", "Alice"))
	})

	t.Run("should return empty code for empty input", func(t *testing.T) {
		assert.Equal(t, "", scorer.Soundex(""))
	})
}

func TestExactMatch(t *testing.T) {
	scorer := NewScorer()

	t.Run("should respect case sensitivity flag", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.ExactMatch("ACME", "acme", false))
		assert.Equal(t, 0.0, scorer.ExactMatch("ACME", "acme", true))
	})
}
