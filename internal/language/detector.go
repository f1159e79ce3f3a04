// Package language classifies transcript text by script composition so the
// analysis stage can pick a matching prompt template.
package language

import "unicode"

// Language is a detected transcript language
type Language string

const (
	English Language = "en"
	Chinese Language = "zh"
)

// DefaultChineseThreshold is the CJK character fraction above which text is
// classified as Chinese.
const DefaultChineseThreshold = 0.30

// cjkRanges covers the CJK unified ideograph blocks plus extensions A-G.
var cjkRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3400, Hi: 0x4DBF, Stride: 1}, // Extension A
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1}, // Unified ideographs
	},
	R32: []unicode.Range32{
		{Lo: 0x20000, Hi: 0x2A6DF, Stride: 1}, // Extension B
		{Lo: 0x2A700, Hi: 0x2B73F, Stride: 1}, // Extension C
		{Lo: 0x2B740, Hi: 0x2B81F, Stride: 1}, // Extension D
		{Lo: 0x2B820, Hi: 0x2CEAF, Stride: 1}, // Extension E
		{Lo: 0x2CEB0, Hi: 0x2EBEF, Stride: 1}, // Extension F
		{Lo: 0x30000, Hi: 0x3134F, Stride: 1}, // Extension G
	},
}

// Detector classifies text as Chinese or English from the fraction of CJK
// code points among non-whitespace characters. Deterministic, no I/O.
type Detector struct {
	threshold float64
}

// NewDetector creates a detector with the given Chinese-character threshold.
// A non-positive threshold falls back to the default.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultChineseThreshold
	}
	return &Detector{threshold: threshold}
}

// Threshold returns the configured CJK fraction threshold
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Detect classifies text. A CJK fraction strictly greater than the threshold
// is Chinese; exactly at the threshold, or below, is English. Empty or
// whitespace-only text is English.
func (d *Detector) Detect(text string) Language {
	var cjk, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(cjkRanges, r) {
			cjk++
		}
	}

	if total == 0 {
		return English
	}
	if float64(cjk)/float64(total) > d.threshold {
		return Chinese
	}
	return English
}
