package subtitle

import (
	"golang.org/x/text/width"
)

// WeightedLength measures text where wide characters (CJK ideographs, full
// width forms) count 2 and everything else counts 1. Scene grouping budgets
// are expressed in this measure so Chinese and English scripts fill scenes
// comparably.
func WeightedLength(text string) int {
	total := 0
	for _, r := range text {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			total += 2
		default:
			total++
		}
	}
	return total
}
