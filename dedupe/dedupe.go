// Package dedupe computes a SimHash fingerprint over a page's DOM structure
// and answers "has a follow branch already visited a page this similar"
// (§4.7[FULL]'s skip_near_duplicates heuristic).
package dedupe

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// DefaultThreshold is the Hamming-distance cutoff at or below which two pages'
// fingerprints are considered the same page for follow purposes. It is
// deliberately tight: skip_near_duplicates is opt-in (§3.4[FULL]), and a
// false "duplicate" silently drops a branch the query author expected to
// run, which is worse than following one extra near-duplicate page.
const DefaultThreshold = 3

// Fingerprint computes a 64-bit SimHash over a DOM's tag-trigram shingles,
// structural rather than textual so that near-identical templated pages
// (pagination, listing variants) collapse to the same fingerprint even when
// their visible text differs.
func Fingerprint(htmlStr string) uint64 {
	tags := extractTags(htmlStr)
	if len(tags) == 0 {
		return 0
	}
	shingles := makeShingles(tags, 3)
	if len(shingles) == 0 {
		return hashWords(tags)
	}
	return hashWords(shingles)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int { return bits.OnesCount64(a ^ b) }

// Seen tracks fingerprints observed along one follow branch. It is a plain
// value copied alongside query.EvalContext so sibling branches never share
// observations, mirroring query.VisitedSet's copy-on-write scoping.
type Seen struct {
	prints []uint64
}

// NewSeen returns an empty fingerprint set.
func NewSeen() Seen { return Seen{} }

// IsNearDuplicate reports whether fp is within threshold of any fingerprint
// already recorded in s.
func (s Seen) IsNearDuplicate(fp uint64, threshold int) bool {
	for _, p := range s.prints {
		if Distance(fp, p) <= threshold {
			return true
		}
	}
	return false
}

// Add returns a new Seen with fp appended, leaving the receiver untouched
// (copy-on-write, same discipline as query.VisitedSet.Add).
func (s Seen) Add(fp uint64) Seen {
	next := make([]uint64, len(s.prints), len(s.prints)+1)
	copy(next, s.prints)
	next = append(next, fp)
	return Seen{prints: next}
}

func hashWords(words []string) uint64 {
	if len(words) == 0 {
		return 0
	}
	var vector [64]int
	for _, w := range words {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}
	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

func extractTags(htmlStr string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tags = append(tags, string(tn))
		}
	}
}

func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}
