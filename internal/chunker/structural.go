package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aurelienbran/docproc/internal/docmodel"
)

// structuralPatterns maps an element type to the regex that detects it.
// Each pattern's first capture group is the element number.
var structuralPatterns = map[string]*regexp.Regexp{
	"figure":   regexp.MustCompile(`(?i)\bfigure\s+(\d+)\b`),
	"table":    regexp.MustCompile(`(?i)\btableau\s+(\d+)\b`),
	"equation": regexp.MustCompile(`(?i)\b(?:équation|equation)\s+(\d+)\b`),
	"section":  regexp.MustCompile(`(?i)\bsection\s+(\d+(?:\.\d+)*)\b`),
}

const contextWindow = 40

// scanStructuralElements regex-detects named elements across the full text,
// each carrying its type, a stable id, source offset, and a small context
// window for later display/debugging.
func scanStructuralElements(text string) []docmodel.StructuralElement {
	var out []docmodel.StructuralElement
	for elemType, re := range structuralPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			num := text[loc[2]:loc[3]]
			out = append(out, docmodel.StructuralElement{
				Type:    elemType,
				ID:      fmt.Sprintf("%s_%s", elemType, num),
				Offset:  start,
				Context: contextAround(text, start, end),
			})
		}
	}
	return out
}

func contextAround(text string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// refsInRange returns the structural elements whose offset falls within
// [start, end) of a chunk.
func refsInRange(elements []docmodel.StructuralElement, start, end int) []docmodel.StructuralElement {
	var out []docmodel.StructuralElement
	for _, e := range elements {
		if e.Offset >= start && e.Offset < end {
			out = append(out, e)
		}
	}
	return out
}
