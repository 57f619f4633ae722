// Package chrom normalizes chromosome labels so that they sort and group in
// numeric order when compared as strings.
package chrom

import "strconv"

// padded maps single-digit autosome labels to their zero-padded form.
var padded = func() map[string]string {
	m := make(map[string]string, 9)
	for i := 1; i <= 9; i++ {
		s := strconv.Itoa(i)
		m[s] = "0" + s
	}
	return m
}()

// Normalize returns the canonical form of a chromosome label: "1".."9"
// become "01".."09", every other label is returned unchanged.
func Normalize(label string) string {
	if p, ok := padded[label]; ok {
		return p
	}
	return label
}

// NormalizeAll normalizes every label, returning a new slice of the same length.
func NormalizeAll(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = Normalize(l)
	}
	return out
}
