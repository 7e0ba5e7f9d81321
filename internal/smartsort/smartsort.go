// Package smartsort implements the "smart" comparator §4.8's --list uses:
// non-digit runs compare case-insensitively, embedded digit runs compare
// numerically, so "t2" sorts before "t10".
//
// Grounded on original_source/daemon/daemon.c's strsmartcmp.
package smartsort

import (
	"sort"
	"strings"
	"unicode"
)

// Less reports whether a sorts before b under the smart comparator.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Compare returns -1, 0, or 1 comparing a and b the way --list does.
func Compare(a, b string) int {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0

	for i < len(ar) && j < len(br) {
		ac, bc := ar[i], br[j]

		if unicode.IsDigit(ac) && unicode.IsDigit(bc) {
			aEnd := i
			for aEnd < len(ar) && unicode.IsDigit(ar[aEnd]) {
				aEnd++
			}
			bEnd := j
			for bEnd < len(br) && unicode.IsDigit(br[bEnd]) {
				bEnd++
			}

			an := strings.TrimLeft(string(ar[i:aEnd]), "0")
			bn := strings.TrimLeft(string(br[j:bEnd]), "0")

			if len(an) != len(bn) {
				if len(an) < len(bn) {
					return -1
				}
				return 1
			}
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}

			i, j = aEnd, bEnd
			continue
		}

		al, bl := unicode.ToLower(ac), unicode.ToLower(bc)
		if al != bl {
			if al < bl {
				return -1
			}
			return 1
		}
		i++
		j++
	}

	switch {
	case len(ar)-i < len(br)-j:
		return -1
	case len(ar)-i > len(br)-j:
		return 1
	default:
		return 0
	}
}

// Strings sorts names in place using Compare.
func Strings(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return Compare(names[i], names[j]) < 0
	})
}
