package classify

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	MinThicknessMM = 0.4
	MaxThicknessMM = 100.0
	MinDimensionMM = 100
	MaxDimensionMM = 6000
)

var (
	explicitThicknessRegex = regexp.MustCompile(`\bep(?:aisseur|ais)?\.?\s*:?\s*(\d+(?:[.,]\d+)?)`)
	mmThicknessRegex       = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*mm\b`)
	dimensionsRegex        = regexp.MustCompile(`\b(\d{3,4}(?:[.,]\d+)?)\s*[x*]\s*(\d{3,4}(?:[.,]\d+)?)(?:\s*[x*]\s*(\d+(?:[.,]\d+)?))?`)
)

// ExtractThickness finds a panel thickness in millimetres, 0 when none is found.
// An explicit "ep"/"épaisseur" wins over a "mm" suffix, which wins over the third member of LxWxT.
func ExtractThickness(text string) float64 {
	folded := Fold(text)

	for _, m := range explicitThicknessRegex.FindAllStringSubmatch(folded, -1) {
		if v, ok := thicknessValue(m[1]); ok {
			return v
		}
	}
	for _, m := range mmThicknessRegex.FindAllStringSubmatch(folded, -1) {
		if v, ok := thicknessValue(m[1]); ok {
			return v
		}
	}
	for _, m := range dimensionsRegex.FindAllStringSubmatch(folded, -1) {
		if m[3] == "" {
			continue
		}
		if v, ok := thicknessValue(m[3]); ok {
			return v
		}
	}
	return 0
}

// ExtractDimensions finds "LxW" sheet dimensions in millimetres. length is the larger value.
func ExtractDimensions(text string) (length, width int) {
	folded := Fold(text)
	for _, m := range dimensionsRegex.FindAllStringSubmatch(folded, -1) {
		a, okA := dimensionValue(m[1])
		b, okB := dimensionValue(m[2])
		if !okA || !okB {
			continue
		}
		if b > a {
			a, b = b, a
		}
		return a, b
	}
	return 0, 0
}

// ParseNumber reads a decimal with either "," or "." as separator.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func thicknessValue(s string) (float64, bool) {
	v, ok := ParseNumber(s)
	if !ok || v < MinThicknessMM || v > MaxThicknessMM {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

func dimensionValue(s string) (int, bool) {
	v, ok := ParseNumber(s)
	if !ok {
		return 0, false
	}
	n := int(math.Round(v))
	if n < MinDimensionMM || n > MaxDimensionMM {
		return 0, false
	}
	return n, true
}
