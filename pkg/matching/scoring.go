package matching

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// String similarity combines several algorithms with fixed weights. The mix is
// tuned so word reordering and minor typos in transaction descriptions still
// score high while unrelated strings fall away quickly.
const (
	levenshteinWeight = 0.3
	jaroWinklerWeight = 0.4
	tokenSortWeight   = 0.2
	phoneticWeight    = 0.1
)

// Scorer provides the string and value comparison algorithms used by the
// reconciliation pipeline. All results are in [0, 1].
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// AmountSimilarity compares two monetary amounts under a relative tolerance.
// Within tolerance the score decays linearly from 1.0 to 0.9; beyond it the
// score decays exponentially and never quite reaches zero.
func (s *Scorer) AmountSimilarity(a, b, tolerance float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0.0
	}

	diff := math.Abs(a - b)
	avg := (math.Abs(a) + math.Abs(b)) / 2

	if avg == 0 {
		if a == b {
			return 1.0
		}
		return 0.0
	}

	pct := diff / avg
	if tolerance > 0 && pct <= tolerance {
		return 1.0 - 0.1*(pct/tolerance)
	}

	return math.Max(0, math.Exp(-5*pct))
}

// DateSimilarity compares two calendar-day distances under a day tolerance.
// diffDays is the absolute difference in calendar days.
func (s *Scorer) DateSimilarity(diffDays int, toleranceDays int) float64 {
	if diffDays < 0 {
		diffDays = -diffDays
	}
	if diffDays == 0 {
		return 1.0
	}
	if toleranceDays <= 0 {
		toleranceDays = 1
	}
	if diffDays <= toleranceDays {
		return 1.0 - 0.2*(float64(diffDays)/float64(toleranceDays))
	}
	return math.Max(0, math.Exp(-float64(diffDays)/(2*float64(toleranceDays))))
}

// StringSimilarity computes the composite string score: Levenshtein-derived
// similarity, Jaro-Winkler, token-sort similarity and phonetic equality,
// combined with fixed weights. Identical strings short-circuit to 1.0 and an
// empty side short-circuits to 0.0.
func (s *Scorer) StringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	return levenshteinWeight*s.Levenshtein(a, b) +
		jaroWinklerWeight*s.JaroWinkler(a, b) +
		tokenSortWeight*s.TokenSort(a, b) +
		phoneticWeight*s.SoundexMatch(a, b)
}

// ExactMatch returns 1.0 for exact match, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string, caseSensitive bool) float64 {
	if !caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// TokenSort splits both strings on whitespace, sorts the tokens
// alphabetically, re-joins them and applies the Levenshtein-derived formula.
// This neutralizes word-order differences ("ACME Corp payment" vs
// "payment ACME Corp").
func (s *Scorer) TokenSort(a, b string) float64 {
	return s.Levenshtein(sortTokens(a), sortTokens(b))
}

func sortTokens(str string) string {
	tokens := strings.Fields(str)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// JaroWinkler calculates the Jaro-Winkler similarity between two strings
// Returns a value between 0.0 (no similarity) and 1.0 (exact match)
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	jaro := s.Jaro(a, b)

	// Winkler modification: boost for common prefix
	prefixLen := 0
	maxPrefix := 4
	for i := 0; i < len(a) && i < len(b) && i < maxPrefix; i++ {
		if a[i] == b[i] {
			prefixLen++
		} else {
			break
		}
	}

	// Winkler scaling factor is typically 0.1
	scalingFactor := 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}

// Jaro calculates the Jaro similarity between two strings
func (s *Scorer) Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// Maximum distance for character matching
	matchDist := max(len(a), len(b))/2 - 1
	if matchDist < 0 {
		matchDist = 0
	}

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	transpositions := 0

	// Find matches
	for i := 0; i < len(a); i++ {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)

		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions
	k := 0
	for i := 0; i < len(a); i++ {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}

// Levenshtein calculates the Levenshtein distance between two strings
// Returns a similarity score between 0.0 and 1.0
func (s *Scorer) Levenshtein(a, b string) float64 {
	distance := s.LevenshteinDistance(a, b)
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Create two rows for dynamic programming
	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

// Soundex calculates the Soundex encoding of a string
func (s *Scorer) Soundex(str string) string {
	if len(str) == 0 {
		return ""
	}

	// Convert to uppercase
	str = strings.ToUpper(str)

	// Keep the first letter
	result := string(str[0])
	prevCode := soundexCode(rune(str[0]))

	// Process remaining characters
	for i := 1; i < len(str) && len(result) < 4; i++ {
		char := rune(str[i])
		if !unicode.IsLetter(char) {
			continue
		}

		code := soundexCode(char)
		if code != "0" && code != prevCode {
			result += code
		}
		prevCode = code
	}

	// Pad with zeros
	for len(result) < 4 {
		result += "0"
	}

	return result
}

// SoundexMatch returns 1.0 if Soundex codes match, 0.0 otherwise
func (s *Scorer) SoundexMatch(a, b string) float64 {
	if s.Soundex(a) == s.Soundex(b) {
		return 1.0
	}
	return 0.0
}

// soundexCode returns the Soundex code for a character
func soundexCode(char rune) string {
	switch char {
	case 'B', 'F', 'P', 'V':
		return "1"
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return "2"
	case 'D', 'T':
		return "3"
	case 'L':
		return "4"
	case 'M', 'N':
		return "5"
	case 'R':
		return "6"
	default:
		// Vowels, H, W and Y carry no code
		return "0"
	}
}
