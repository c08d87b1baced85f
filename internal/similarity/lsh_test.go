package similarity

import (
	"math/rand"
	"testing"
)

func TestBandingIndexIdenticalSignatures(t *testing.T) {
	// Three identical documents collide in every band but each pair must
	// appear exactly once, in ascending order.
	sig := randomSignature(128, 1)
	index := NewBandingIndex(16, 8)
	index.Index([]Signature{sig, sig, sig})

	pairs := index.CandidatePairs()
	want := []Pair{{A: 0, B: 1}, {A: 0, B: 2}, {A: 1, B: 2}}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs %v, want %d", len(pairs), pairs, len(want))
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestBandingIndexUnrelatedSignatures(t *testing.T) {
	signatures := make([]Signature, 20)
	for i := range signatures {
		signatures[i] = randomSignature(128, int64(i+1))
	}

	index := NewBandingIndex(16, 8)
	index.Index(signatures)

	if pairs := index.CandidatePairs(); len(pairs) != 0 {
		t.Errorf("unrelated signatures produced %d candidate pairs: %v", len(pairs), pairs)
	}
}

func TestBandingIndexSingleBandCollision(t *testing.T) {
	// Two signatures agreeing only on rows 8..15 (band 1 of a 16x8 split)
	// must still become a candidate pair.
	a := randomSignature(128, 1)
	b := randomSignature(128, 2)
	for i := 8; i < 16; i++ {
		b[i] = a[i]
	}

	index := NewBandingIndex(16, 8)
	index.Index([]Signature{a, b})

	pairs := index.CandidatePairs()
	if len(pairs) != 1 || pairs[0] != (Pair{A: 0, B: 1}) {
		t.Fatalf("pairs = %v, want exactly [{0 1}]", pairs)
	}
}

func TestBandingIndexRowSplitMatters(t *testing.T) {
	// The same agreement pattern stops producing a pair once the band
	// boundaries shift so that no complete band matches.
	a := randomSignature(128, 1)
	b := randomSignature(128, 2)
	for i := 8; i < 16; i++ {
		b[i] = a[i]
	}

	index := NewBandingIndex(8, 16)
	index.Index([]Signature{a, b})

	if pairs := index.CandidatePairs(); len(pairs) != 0 {
		t.Errorf("pairs = %v, want none with 16-row bands", pairs)
	}
}

func TestBandingIndexDeterministicOrder(t *testing.T) {
	// A mix of two duplicate groups: {0,3} and {1,2,4}.
	base1 := randomSignature(64, 10)
	base2 := randomSignature(64, 20)
	signatures := []Signature{base1, base2, base2, base1, base2}

	index := NewBandingIndex(8, 8)
	index.Index(signatures)

	pairs := index.CandidatePairs()
	want := []Pair{{A: 0, B: 3}, {A: 1, B: 2}, {A: 1, B: 4}, {A: 2, B: 4}}
	if len(pairs) != len(want) {
		t.Fatalf("got pairs %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestBucketCount(t *testing.T) {
	sig := randomSignature(64, 3)
	index := NewBandingIndex(8, 8)
	index.Index([]Signature{sig, sig})

	// Both documents share every bucket, so each band holds exactly one.
	if got := index.BucketCount(); got != 8 {
		t.Errorf("BucketCount() = %d, want 8", got)
	}
}

func randomSignature(k int, seed int64) Signature {
	rng := rand.New(rand.NewSource(seed))
	sig := make(Signature, k)
	for i := range sig {
		sig[i] = uint64(rng.Int63n(int64(mersennePrime)))
	}
	return sig
}
