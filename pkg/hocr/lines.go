package hocr

import (
	"sort"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// WordsFromBoxes converts engine word boxes, dropping empty ones.
func WordsFromBoxes(boxes []recognition.BoundingBox) []WordBox {
	words := make([]WordBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Text == "" || b.Width <= 0 || b.Height <= 0 {
			continue
		}
		words = append(words, WordBox{
			X:          b.X,
			Y:          b.Y,
			Width:      b.Width,
			Height:     b.Height,
			Text:       b.Text,
			Confidence: b.Confidence,
		})
	}
	return words
}

// GroupWordsIntoLines orders words top to bottom, left to right and groups
// those that overlap vertically into lines.
func GroupWordsIntoLines(words []WordBox) []LineBox {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]WordBox, len(words))
	copy(sorted, words)
	// Strict top-to-bottom order; wordsOnSameLine does the grouping and
	// createLineFromWords restores left-to-right order inside each line.
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []LineBox
	var currentLineWords []WordBox

	for _, word := range sorted {
		if len(currentLineWords) == 0 {
			currentLineWords = append(currentLineWords, word)
			continue
		}

		if wordsOnSameLine(currentLineWords, word) {
			currentLineWords = append(currentLineWords, word)
		} else {
			lines = append(lines, createLineFromWords(currentLineWords))
			currentLineWords = []WordBox{word}
		}
	}

	if len(currentLineWords) > 0 {
		lines = append(lines, createLineFromWords(currentLineWords))
	}

	return lines
}

func wordsOnSameLine(currentLineWords []WordBox, newWord WordBox) bool {
	if len(currentLineWords) == 0 {
		return true
	}

	avgHeight := 0
	minY, maxY := currentLineWords[0].Y, currentLineWords[0].Y+currentLineWords[0].Height
	for _, word := range currentLineWords {
		avgHeight += word.Height
		if word.Y < minY {
			minY = word.Y
		}
		if word.Y+word.Height > maxY {
			maxY = word.Y + word.Height
		}
	}
	avgHeight /= len(currentLineWords)

	tolerance := avgHeight / 3
	currentLineBottom := maxY + tolerance
	currentLineTop := minY - tolerance

	return newWord.Y+newWord.Height >= currentLineTop && newWord.Y <= currentLineBottom
}

func createLineFromWords(words []WordBox) LineBox {
	if len(words) == 0 {
		return LineBox{}
	}

	minX, minY := words[0].X, words[0].Y
	maxX, maxY := words[0].X+words[0].Width, words[0].Y+words[0].Height

	for _, word := range words[1:] {
		minX = min(minX, word.X)
		minY = min(minY, word.Y)
		maxX = max(maxX, word.X+word.Width)
		maxY = max(maxY, word.Y+word.Height)
	}

	sort.SliceStable(words, func(i, j int) bool {
		if words[i].X != words[j].X {
			return words[i].X < words[j].X
		}
		return words[i].Y < words[j].Y
	})

	return LineBox{
		Words:  words,
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}
