package evaluation

import (
	"sort"
	"strings"
)

// applyIgnorePatterns removes the parts of a comparison the transcriber of
// the ground truth could not read. A ground-truth word equal to a pattern is
// an unknown word: it and the transcription word in the same position are
// both blanked. A pattern inside a word is an unknown character: it and the
// transcription character in the same position are dropped. Words are
// aligned by position. The returned count is the number of ground-truth
// characters removed.
func applyIgnorePatterns(groundTruth, transcription string, patterns []string) (string, string, int) {
	patterns = usablePatterns(patterns)
	if len(patterns) == 0 {
		return groundTruth, transcription, 0
	}

	gtWords := strings.Fields(groundTruth)
	trWords := strings.Fields(transcription)

	gtOut := make([]string, 0, len(gtWords))
	var trOut []string
	ignored := 0

	for i, word := range gtWords {
		hasTrans := i < len(trWords)

		if isPattern(word, patterns) {
			gtOut = append(gtOut, "")
			if hasTrans {
				trOut = append(trOut, "")
			}
			ignored += len([]rune(word))
			continue
		}

		trWord := ""
		if hasTrans {
			trWord = trWords[i]
		}
		g, t, n := stripUnknownChars(word, trWord, patterns)
		ignored += n
		gtOut = append(gtOut, g)
		if hasTrans {
			trOut = append(trOut, t)
		}
	}
	if len(trWords) > len(gtWords) {
		trOut = append(trOut, trWords[len(gtWords):]...)
	}

	return strings.Join(gtOut, " "), strings.Join(trOut, " "), ignored
}

// stripUnknownChars walks gt and tr in step. Every pattern occurrence in gt
// consumes one character of tr.
func stripUnknownChars(gt, tr string, patterns []string) (string, string, int) {
	g := []rune(gt)
	t := []rune(tr)
	var gOut, tOut []rune
	ignored := 0

	gi, ti := 0, 0
	for gi < len(g) {
		if p := patternAt(g, gi, patterns); p > 0 {
			gi += p
			ti++
			ignored += p
			continue
		}
		gOut = append(gOut, g[gi])
		if ti < len(t) {
			tOut = append(tOut, t[ti])
		}
		gi++
		ti++
	}
	if ti < len(t) {
		tOut = append(tOut, t[ti:]...)
	}
	return string(gOut), string(tOut), ignored
}

// patternAt returns the rune length of the pattern starting at g[i], or 0.
func patternAt(g []rune, i int, patterns []string) int {
	for _, p := range patterns {
		pr := []rune(p)
		if i+len(pr) <= len(g) && string(g[i:i+len(pr)]) == p {
			return len(pr)
		}
	}
	return 0
}

func isPattern(word string, patterns []string) bool {
	for _, p := range patterns {
		if word == p {
			return true
		}
	}
	return false
}

// usablePatterns drops empty patterns and orders the rest longest first so
// a multi-character marker wins over its own prefix.
func usablePatterns(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}
