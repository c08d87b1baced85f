package similarity

import (
	"math"
	"math/rand"
)

// DefaultSignatureSize is the default number of MinHash functions.
const DefaultSignatureSize = 128

// mersennePrime is the modulus of the affine hash family, 2^31 - 1. Keeping
// a*x+b under 2^63 for 31-bit parameters avoids overflow in uint64 space.
const mersennePrime uint64 = (1 << 31) - 1

// Signature is a fixed-length MinHash signature. Position i holds the
// minimum image of the document's shingle set under the i-th hash function,
// so the expected fraction of matching positions between two signatures
// equals the Jaccard similarity of the underlying sets.
type Signature []uint64

// Signer computes MinHash signatures with a family of k affine transforms
// h_i(x) = (a_i*x + b_i) mod p over the Mersenne prime p = 2^31-1. The
// parameters are drawn from a seeded source, so two Signers built with the
// same size and seed produce identical signatures for identical input.
type Signer struct {
	k int
	a []uint64
	b []uint64
}

// NewSigner creates a Signer with k hash functions derived from seed.
// Sizes below 1 fall back to DefaultSignatureSize.
func NewSigner(k int, seed int64) *Signer {
	if k < 1 {
		k = DefaultSignatureSize
	}

	rng := rand.New(rand.NewSource(seed))
	s := &Signer{
		k: k,
		a: make([]uint64, k),
		b: make([]uint64, k),
	}
	for i := 0; i < k; i++ {
		// a must stay non-zero or h_i collapses to a constant.
		s.a[i] = uint64(rng.Int63n(int64(mersennePrime)-1)) + 1
		s.b[i] = uint64(rng.Int63n(int64(mersennePrime)))
	}
	return s
}

// Size returns the signature length k.
func (s *Signer) Size() int { return s.k }

// Sign computes the MinHash signature of a shingle set.
func (s *Signer) Sign(shingles []uint64) Signature {
	sig := make(Signature, s.k)
	for i := range sig {
		sig[i] = math.MaxUint64
	}

	for _, shingle := range shingles {
		x := shingle % mersennePrime
		for i := 0; i < s.k; i++ {
			if v := (s.a[i]*x + s.b[i]) % mersennePrime; v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// EstimateSimilarity returns the fraction of positions at which the two
// signatures agree. This estimates the Jaccard similarity of the underlying
// shingle sets with standard error on the order of 1/sqrt(k).
func EstimateSimilarity(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
