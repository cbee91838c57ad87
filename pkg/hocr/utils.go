package hocr

import (
	"fmt"
	"math"
	"strings"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

// FromResult renders a recognition result as an hOCR document. Word boxes
// are grouped into ocrx_line spans; a result without boxes gets one line per
// text line and no geometry. width and height describe the page and may be
// zero when unknown.
func FromResult(res recognition.Result, width, height int) string {
	words := WordsFromBoxes(res.Boxes)
	if len(words) > 0 {
		return WrapInHOCRDocument(linesMarkup(GroupWordsIntoLines(words)), width, height)
	}
	return WrapInHOCRDocument(textMarkup(res.Text, res.Confidence), width, height)
}

func linesMarkup(lines []LineBox) string {
	var out []string
	wordIndex := 0
	for i, line := range lines {
		var spans []string
		for _, w := range line.Words {
			wordIndex++
			spans = append(spans, fmt.Sprintf(`<span class='ocrx_word' id='word_%d' title='bbox %d %d %d %d; x_wconf %d'>%s</span>`,
				wordIndex,
				w.X, w.Y, w.X+w.Width, w.Y+w.Height,
				wconf(w.Confidence),
				escapeText(w.Text)))
		}
		out = append(out, fmt.Sprintf(`<span class='ocrx_line' id='line_%d' title='bbox %d %d %d %d'>%s</span>`,
			i+1,
			line.X, line.Y, line.X+line.Width, line.Y+line.Height,
			strings.Join(spans, " ")))
	}
	return strings.Join(out, "\n")
}

func textMarkup(text string, confidence float64) string {
	var out []string
	wordIndex := 0
	lineIndex := 0
	for _, raw := range strings.Split(text, "\n") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		lineIndex++
		spans := make([]string, len(fields))
		for i, f := range fields {
			wordIndex++
			spans[i] = fmt.Sprintf(`<span class='ocrx_word' id='word_%d' title='x_wconf %d'>%s</span>`,
				wordIndex, wconf(confidence), escapeText(f))
		}
		out = append(out, fmt.Sprintf(`<span class='ocrx_line' id='line_%d'>%s</span>`, lineIndex, strings.Join(spans, " ")))
	}
	return strings.Join(out, "\n")
}

// wconf converts a [0,1] confidence to hOCR's 0-100 x_wconf.
func wconf(c float64) int {
	return int(math.Round(recognition.NormalizeConfidence(c, recognition.ScaleUnit) * 100))
}

// WrapInHOCRDocument wraps content in a complete hOCR HTML document
func WrapInHOCRDocument(content string, width, height int) string {
	pageTitle := ""
	if width > 0 && height > 0 {
		pageTitle = fmt.Sprintf(" title='bbox 0 0 %d %d'", width, height)
	}
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
<head>
<title></title>
<meta http-equiv="Content-Type" content="text/html;charset=utf-8" />
<meta name='ocr-system' content='textlens' />
<meta name='ocr-capabilities' content='ocr_page ocrx_line ocrx_word' />
</head>
<body>
<div class='ocr_page' id='page_1'%s>
%s
</div>
</body>
</html>`, pageTitle, content)
}

// escapeText makes recognized text safe inside an element. Entities the
// engine already produced are kept.
func escapeText(s string) string {
	s = fixAmpersands(s)
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}

func fixAmpersands(content string) string {
	validEntities := []string{"&amp;", "&lt;", "&gt;", "&quot;", "&apos;", "&#39;"}

	result := content
	lines := strings.Split(result, "\n")
	var cleanLines []string

	for _, line := range lines {
		cleanLine := line

		for i := 0; i < len(cleanLine); i++ {
			if cleanLine[i] == '&' {
				isValidEntity := false
				for _, entity := range validEntities {
					if i+len(entity) <= len(cleanLine) && cleanLine[i:i+len(entity)] == entity {
						isValidEntity = true
						i += len(entity) - 1
						break
					}
				}

				if !isValidEntity && i+2 < len(cleanLine) && cleanLine[i+1] == '#' {
					j := i + 2
					for j < len(cleanLine) && cleanLine[j] >= '0' && cleanLine[j] <= '9' {
						j++
					}
					if j < len(cleanLine) && cleanLine[j] == ';' {
						isValidEntity = true
						i = j
					}
				}

				if !isValidEntity {
					cleanLine = cleanLine[:i] + "&amp;" + cleanLine[i+1:]
					i += 4
				}
			}
		}

		cleanLines = append(cleanLines, cleanLine)
	}

	return strings.Join(cleanLines, "\n")
}
