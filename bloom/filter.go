// Package bloom provides a trigram prefilter for substring search.
package bloom

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

// gramSize is the length of the grams added for each name.
const gramSize = 3

// Filter records the trigrams of a set of names. A pattern whose
// trigrams are not all present cannot be a substring of any name.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a filter sized for n expected trigrams with the
// given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Add adds the trigrams of s, case-insensitively.
func (f *Filter) Add(s string) {
	for _, g := range Trigrams(s) {
		f.f.AddString(g)
	}
}

// MayContain reports whether pattern may be a substring of an added
// name. False positives are possible; false negatives are not. Patterns
// shorter than a trigram always pass.
func (f *Filter) MayContain(pattern string) bool {
	for _, g := range Trigrams(pattern) {
		if !f.f.TestString(g) {
			return false
		}
	}
	return true
}

// EstimatedCount returns the approximate number of distinct trigrams.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}

// GobEncode implements gob.GobEncoder.
func (f *Filter) GobEncode() ([]byte, error) {
	return f.f.GobEncode()
}

// GobDecode implements gob.GobDecoder.
func (f *Filter) GobDecode(data []byte) error {
	bf := &bloom.BloomFilter{}
	if err := bf.GobDecode(data); err != nil {
		return err
	}
	f.f = bf
	return nil
}

// Trigrams returns the distinct lowercase trigrams of s in order of
// first appearance. Strings shorter than three runes have none.
func Trigrams(s string) []string {
	runes := []rune(strings.ToLower(s))
	if len(runes) < gramSize {
		return nil
	}
	seen := make(map[string]struct{}, len(runes))
	grams := make([]string, 0, len(runes)-gramSize+1)
	for i := 0; i+gramSize <= len(runes); i++ {
		g := string(runes[i : i+gramSize])
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		grams = append(grams, g)
	}
	return grams
}
