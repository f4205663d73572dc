package papergen

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint is the stable dedup key of a question: a hash over the
// normalized question text and option set. Two questions that differ only in
// whitespace, letter case, or option order share a fingerprint.
type Fingerprint string

// FingerprintOf computes the fingerprint of a question. Computed once at
// acceptance time; the result does not depend on provenance fields, so the
// same question generated for two different papers still collides.
func FingerprintOf(q *Question) Fingerprint {
	parts := make([]string, 0, len(q.Options)+1)
	parts = append(parts, normalize(q.Text))

	options := make([]string, len(q.Options))
	for i, opt := range q.Options {
		options[i] = normalize(opt)
	}
	sort.Strings(options)
	parts = append(parts, options...)

	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return Fingerprint(hex.EncodeToString(h[:]))
}

// normalize lowercases and collapses runs of whitespace to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
