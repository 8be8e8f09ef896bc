package runstore

import (
	"hash/fnv"
	"math"
)

// bloomFilter is a standard Bloom filter over the keys of a single run,
// consulted before a slice scan bothers decompressing anything.
type bloomFilter struct {
	bits []bool
	k    int
}

func newBloomFilter(expectedItems int, fpRate float64) *bloomFilter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}

	const ln2sq = 0.4804530139182014 // ln(2)^2
	size := int(math.Ceil(-float64(expectedItems) * math.Log(fpRate) / ln2sq))
	if size < 8 {
		size = 8
	}

	k := int(math.Round(float64(size) / float64(expectedItems) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}

	return &bloomFilter{bits: make([]bool, size), k: k}
}

func (bf *bloomFilter) add(key []byte) {
	for i := 0; i < bf.k; i++ {
		bf.bits[bf.index(key, i)] = true
	}
}

func (bf *bloomFilter) mayContain(key []byte) bool {
	for i := 0; i < bf.k; i++ {
		if !bf.bits[bf.index(key, i)] {
			return false
		}
	}
	return true
}

func (bf *bloomFilter) index(key []byte, salt int) uint32 {
	h := fnv.New32a()
	h.Write(key)
	h.Write([]byte{byte(salt)})
	return h.Sum32() % uint32(len(bf.bits))
}
