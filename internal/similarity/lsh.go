package similarity

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
	"sync"
)

// Pair is an unordered pair of document indices, stored with A < B.
type Pair struct {
	A int
	B int
}

// BandingIndex buckets MinHash signatures band by band so that any two
// documents sharing at least one bucket become a candidate pair. With b
// bands of r rows, a pair with Jaccard similarity s collides in some band
// with probability 1-(1-s^r)^b, the usual LSH S-curve.
//
// Bands are bucketed independently, so Index builds them in parallel with
// one goroutine per band and no shared writes.
type BandingIndex struct {
	bands int
	rows  int

	// buckets[band] maps a band hash to the indices of the documents whose
	// signature produced it, in ascending document order.
	buckets []map[uint64][]int
}

// NewBandingIndex creates an index with the given banding split. Callers
// must only feed it signatures of length bands*rows.
func NewBandingIndex(bands, rows int) *BandingIndex {
	return &BandingIndex{
		bands:   bands,
		rows:    rows,
		buckets: make([]map[uint64][]int, bands),
	}
}

// Bands returns the number of bands.
func (x *BandingIndex) Bands() int { return x.bands }

// Rows returns the rows per band.
func (x *BandingIndex) Rows() int { return x.rows }

// Index buckets every signature. The document index is the signature's
// position in the slice.
func (x *BandingIndex) Index(signatures []Signature) {
	var wg sync.WaitGroup
	for band := 0; band < x.bands; band++ {
		wg.Add(1)
		go func(band int) {
			defer wg.Done()
			buckets := make(map[uint64][]int)
			lo := band * x.rows
			hi := lo + x.rows
			for doc, sig := range signatures {
				key := bandHash(band, sig[lo:hi])
				buckets[key] = append(buckets[key], doc)
			}
			x.buckets[band] = buckets
		}(band)
	}
	wg.Wait()
}

// CandidatePairs returns every distinct pair of documents that shares at
// least one bucket, sorted ascending by (A, B). Pairs colliding in multiple
// bands appear once.
func (x *BandingIndex) CandidatePairs() []Pair {
	seen := make(map[uint64]struct{})
	var pairs []Pair
	for _, buckets := range x.buckets {
		for _, docs := range buckets {
			if len(docs) < 2 {
				continue
			}
			for i := 0; i < len(docs); i++ {
				for j := i + 1; j < len(docs); j++ {
					a, b := docs[i], docs[j]
					if a > b {
						a, b = b, a
					}
					// Document indices fit in 32 bits, so a pair packs
					// into a single map key.
					key := uint64(a)<<32 | uint64(b)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					pairs = append(pairs, Pair{A: a, B: b})
				}
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// BucketCount returns the total number of non-empty buckets across bands.
func (x *BandingIndex) BucketCount() int {
	total := 0
	for _, buckets := range x.buckets {
		total += len(buckets)
	}
	return total
}

// bandHash hashes one band slice of a signature. The band index is mixed in
// so identical row values in different bands land in distinct key spaces.
func bandHash(band int, rows []uint64) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(band))
	_, _ = h.Write(buf[:])
	for _, v := range rows {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
