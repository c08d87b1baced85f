package similarity

import (
	"hash/fnv"
	"sort"
	"strings"
	"unicode"
)

// DefaultShingleSize is the default n-gram window width, in tokens.
const DefaultShingleSize = 5

// Shingler extracts n-gram shingles from document text.
//
// Text is normalized before windowing: runes are lowercased, every rune that
// is not a letter or digit becomes a space, and the result is split on
// whitespace. The normalization is fixed rather than configurable because it
// changes similarity scores and must stay stable across runs for
// reproducibility. Each shingle is the FNV-1a 64-bit hash of n consecutive
// tokens joined by single spaces.
type Shingler struct {
	n int
}

// NewShingler creates a Shingler with the given n-gram width.
// Widths below 1 fall back to DefaultShingleSize.
func NewShingler(n int) *Shingler {
	if n < 1 {
		n = DefaultShingleSize
	}
	return &Shingler{n: n}
}

// Size returns the configured n-gram width.
func (s *Shingler) Size() int { return s.n }

// Shingle returns the deduplicated, ascending shingle hash set for text.
//
// Documents with fewer than n tokens (including none at all) yield exactly
// one shingle covering the whole normalized text, so the result is never
// empty and two short documents only match when their normalized text does.
func (s *Shingler) Shingle(text string) []uint64 {
	tokens := tokenize(text)
	if len(tokens) < s.n {
		return []uint64{hashShingle(tokens)}
	}

	windows := len(tokens) - s.n + 1
	seen := make(map[uint64]struct{}, windows)
	for i := 0; i < windows; i++ {
		seen[hashShingle(tokens[i:i+s.n])] = struct{}{}
	}

	set := make([]uint64, 0, len(seen))
	for h := range seen {
		set = append(set, h)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set
}

// tokenize lowercases text, maps every non-alphanumeric rune to a space, and
// splits on whitespace.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(' ')
	}
	return strings.Fields(b.String())
}

// hashShingle hashes one token window to its 64-bit shingle value.
func hashShingle(tokens []string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.Join(tokens, " ")))
	return h.Sum64()
}

// Jaccard computes the exact Jaccard similarity of two shingle sets. Both
// arguments must be sorted and deduplicated, as produced by Shingle.
func Jaccard(a, b []uint64) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			intersection++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
