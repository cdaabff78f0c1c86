package chunker

import (
	"regexp"
	"strings"
)

// unit is a span of text together with its offset in the original document,
// carried through paragraph/sentence segmentation so structural references
// can later be matched by offset.
type unit struct {
	text       string
	start, end int
}

var (
	paragraphSepRe = regexp.MustCompile(`\n\s*\n+`)
	sentenceSepRe  = regexp.MustCompile(`[.!?]+[\s]+`)
)

// splitParagraphs splits text on blank lines, trimming surrounding
// whitespace from each paragraph while keeping offsets accurate.
func splitParagraphs(text string) []unit {
	seps := paragraphSepRe.FindAllStringIndex(text, -1)
	var spans [][2]int
	start := 0
	for _, sep := range seps {
		spans = append(spans, [2]int{start, sep[0]})
		start = sep[1]
	}
	spans = append(spans, [2]int{start, len(text)})

	units := make([]unit, 0, len(spans))
	for _, s := range spans {
		raw := text[s[0]:s[1]]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		offset := strings.Index(raw, trimmed)
		units = append(units, unit{text: trimmed, start: s[0] + offset, end: s[0] + offset + len(trimmed)})
	}
	return units
}

// splitSentences further splits a paragraph too long to pack whole into a
// single chunk, using a language-aware-ish punctuation boundary detector.
// base is the paragraph's offset in the original text.
func splitSentences(text string, base int) []unit {
	seps := sentenceSepRe.FindAllStringIndex(text, -1)
	var spans [][2]int
	start := 0
	for _, sep := range seps {
		spans = append(spans, [2]int{start, sep[0]})
		start = sep[1]
	}
	spans = append(spans, [2]int{start, len(text)})

	units := make([]unit, 0, len(spans))
	for _, s := range spans {
		raw := text[s[0]:s[1]]
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		offset := strings.Index(raw, trimmed)
		units = append(units, unit{text: trimmed, start: base + s[0] + offset, end: base + s[0] + offset + len(trimmed)})
	}
	if len(units) == 0 {
		return []unit{{text: text, start: base, end: base + len(text)}}
	}
	return units
}

// slidingWindowSplit breaks a single semantic unit that still exceeds
// maxSize into fixed-size windows.
func slidingWindowSplit(u unit, maxSize int) []unit {
	if len(u.text) <= maxSize {
		return []unit{u}
	}
	var out []unit
	for i := 0; i < len(u.text); i += maxSize {
		hi := i + maxSize
		if hi > len(u.text) {
			hi = len(u.text)
		}
		out = append(out, unit{text: u.text[i:hi], start: u.start + i, end: u.start + hi})
	}
	return out
}

// segment runs the full semantic-segmentation pipeline: paragraph split,
// sentence split for over-long paragraphs, sliding-window split for
// still-too-long units, then greedy packing by maxSize (see pack for what
// the bound counts) with a sentence-boundary-aware overlap carried from the
// previous chunk's tail.
func segment(text string, maxSize, overlap int) []unit {
	paras := splitParagraphs(text)
	if len(paras) == 0 {
		return nil
	}

	var semUnits []unit
	for _, p := range paras {
		if len(p.text) > maxSize {
			semUnits = append(semUnits, splitSentences(p.text, p.start)...)
		} else {
			semUnits = append(semUnits, p)
		}
	}

	var bounded []unit
	for _, u := range semUnits {
		bounded = append(bounded, slidingWindowSplit(u, maxSize)...)
	}

	return pack(bounded, maxSize, overlap)
}

// pack greedily packs semantic units into chunks, starting a new chunk when
// the next unit would take the summed length of the overlap tail and units
// past maxSize, and carrying a sentence-boundary-aware overlap from the tail
// of the previous chunk into the next. The "\n\n" separators between units
// are not counted, so a chunk's text can exceed maxSize by them, and a single
// unit longer than maxSize still forms its own chunk.
func pack(units []unit, maxSize, overlap int) []unit {
	if len(units) == 0 {
		return nil
	}

	var chunks []unit
	var b strings.Builder
	curSize := 0
	chunkStart := units[0].start
	chunkEnd := units[0].end

	flush := func() {
		if b.Len() == 0 {
			return
		}
		chunks = append(chunks, unit{text: b.String(), start: chunkStart, end: chunkEnd})
	}

	for _, u := range units {
		if curSize > 0 && curSize+len(u.text) > maxSize {
			flush()
			prev := b.String()
			b.Reset()
			curSize = 0
			if overlap > 0 {
				if tail := tailOverlap(prev, overlap); tail != "" {
					b.WriteString(tail)
					curSize += len(tail)
				}
			}
			chunkStart = u.start
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(u.text)
		curSize += len(u.text)
		chunkEnd = u.end
	}
	flush()

	return chunks
}

// tailOverlap extracts the trailing overlapSize-ish window of text, trying
// to start from a sentence boundary so the overlap reads naturally.
func tailOverlap(text string, overlapSize int) string {
	if len(text) <= overlapSize {
		return text
	}
	sentences := sentenceSepRe.Split(text, -1)
	var nonEmpty []string
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) <= 1 {
		return text[len(text)-overlapSize:]
	}
	return strings.TrimSpace(nonEmpty[len(nonEmpty)-1])
}
