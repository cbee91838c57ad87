package hocr

import "strings"

// WordBox represents a recognized word with its bounding box
type WordBox struct {
	X, Y, Width, Height int
	Text                string
	Confidence          float64
}

// LineBox represents a line of text containing multiple words
type LineBox struct {
	Words               []WordBox
	X, Y, Width, Height int
}

// Text joins the line's words with single spaces
func (l LineBox) Text() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
