package reconcile

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	// nearDuplicateThreshold is the Jaro-Winkler similarity above which two
	// distinct global names are flagged as likely spelling variants.
	nearDuplicateThreshold = 0.92
)

// nearDuplicateNames returns pairs of distinct global names that are likely
// the same person spelled differently: either phonetically identical under
// Double Metaphone or nearly identical under Jaro-Winkler. Placeholder names
// ("Speaker N") are skipped; they are distinct by construction.
func nearDuplicateNames(names []string) [][2]string {
	var pairs [][2]string
	for i := 0; i < len(names); i++ {
		if isPlaceholder(names[i]) {
			continue
		}
		for j := i + 1; j < len(names); j++ {
			if isPlaceholder(names[j]) {
				continue
			}
			if namesAlike(names[i], names[j]) {
				pairs = append(pairs, [2]string{names[i], names[j]})
			}
		}
	}
	return pairs
}

func namesAlike(a, b string) bool {
	if matchr.JaroWinkler(strings.ToLower(a), strings.ToLower(b), true) >= nearDuplicateThreshold {
		return true
	}
	pa, sa := matchr.DoubleMetaphone(a)
	pb, sb := matchr.DoubleMetaphone(b)
	if pa == "" {
		return false
	}
	return pa == pb || (sa != "" && sa == sb)
}

func isPlaceholder(name string) bool {
	return strings.HasPrefix(name, "Speaker ")
}
