// Package vectorstore holds helpers shared by the domain.VectorStore
// implementations in its subpackages.
package vectorstore

import (
	"fmt"
	"math"
	"regexp"
	"sort"

	"helpdesk/internal/domain"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateIdentifier accepts a plain or schema-qualified SQL identifier.
func ValidateIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector. Both must have the same length.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// TopN orders matches by descending score, keeping input order on ties, and
// truncates to limit.
func TopN(matches []domain.Match, limit int) []domain.Match {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches
}
