// Package evaluation scores a transcription against a ground-truth
// transcript: character and word similarity, word accuracy and word error
// rate.
package evaluation

import (
	"regexp"
	"strings"
)

// Metrics is the accuracy of one transcription.
type Metrics struct {
	CharacterSimilarity   float64 `json:"character_similarity" yaml:"character_similarity"`
	WordSimilarity        float64 `json:"word_similarity" yaml:"word_similarity"`
	WordAccuracy          float64 `json:"word_accuracy" yaml:"word_accuracy"`
	WordErrorRate         float64 `json:"word_error_rate" yaml:"word_error_rate"`
	TotalWordsOriginal    int     `json:"total_words_original" yaml:"total_words_original"`
	TotalWordsTranscribed int     `json:"total_words_transcribed" yaml:"total_words_transcribed"`
	CorrectWords          int     `json:"correct_words" yaml:"correct_words"`
	Substitutions         int     `json:"substitutions" yaml:"substitutions"`
	Deletions             int     `json:"deletions" yaml:"deletions"`
	Insertions            int     `json:"insertions" yaml:"insertions"`
	IgnoredCharsCount     int     `json:"ignored_chars_count" yaml:"ignored_chars_count"`
}

var whitespace = regexp.MustCompile(`\s+`)

func normalizeText(text string) string {
	text = whitespace.ReplaceAllString(strings.TrimSpace(text), " ")
	return strings.ToLower(text)
}

func levenshteinDistance(s1, s2 string) int {
	len1, len2 := len(s1), len(s2)
	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}

	for i := 0; i <= len1; i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				min(matrix[i-1][j]+1, matrix[i][j-1]+1), // deletion, insertion
				matrix[i-1][j-1]+cost,                   // substitution
			)
		}
	}

	return matrix[len1][len2]
}

func calculateSimilarity(s1, s2 string) float64 {
	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshteinDistance(s1, s2)
	return 1.0 - float64(distance)/float64(maxLen)
}

// calculateWordLevelMetrics performs word-level analysis
func calculateWordLevelMetrics(orig, trans []string) (float64, int, int, int, int) {
	m, n := len(orig), len(trans)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}

	for i := 0; i <= m; i++ {
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if orig[i-1] == trans[j-1] {
				dp[i][j] = dp[i-1][j-1]
			} else {
				dp[i][j] = 1 + min(
					min(dp[i-1][j], dp[i][j-1]), // deletion, insertion
					dp[i-1][j-1],                // substitution
				)
			}
		}
	}

	// Backtrack to count operations
	i, j := m, n
	substitutions, deletions, insertions, correct := 0, 0, 0, 0

	for i > 0 || j > 0 {
		if i > 0 && j > 0 && orig[i-1] == trans[j-1] {
			correct++
			i--
			j--
		} else if i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+1 {
			substitutions++
			i--
			j--
		} else if i > 0 && dp[i][j] == dp[i-1][j]+1 {
			deletions++
			i--
		} else {
			insertions++
			j--
		}
	}

	totalEdits := substitutions + deletions + insertions
	wer := 0.0
	if m > 0 {
		wer = float64(totalEdits) / float64(m)
	}
	wordAccuracy := 1.0 - wer

	return wordAccuracy, correct, substitutions, deletions, insertions
}

// CalculateAccuracyMetrics compares a transcription with its ground truth.
// Text is lowercased and whitespace collapsed first. ignorePatterns mark
// unknown words or characters in the ground truth; see applyIgnorePatterns.
func CalculateAccuracyMetrics(original, transcribed string, ignorePatterns []string) Metrics {
	original, transcribed, ignored := applyIgnorePatterns(original, transcribed, ignorePatterns)

	origNorm := normalizeText(original)
	transNorm := normalizeText(transcribed)
	charSim := calculateSimilarity(origNorm, transNorm)
	origWords := strings.Fields(origNorm)
	transWords := strings.Fields(transNorm)
	wordSim := calculateSimilarity(strings.Join(origWords, " "), strings.Join(transWords, " "))
	wordAcc, correct, subs, dels, ins := calculateWordLevelMetrics(origWords, transWords)

	return Metrics{
		CharacterSimilarity:   charSim,
		WordSimilarity:        wordSim,
		WordAccuracy:          wordAcc,
		WordErrorRate:         1.0 - wordAcc,
		TotalWordsOriginal:    len(origWords),
		TotalWordsTranscribed: len(transWords),
		CorrectWords:          correct,
		Substitutions:         subs,
		Deletions:             dels,
		Insertions:            ins,
		IgnoredCharsCount:     ignored,
	}
}

// Summary averages metrics over a run.
type Summary struct {
	Count                      int     `json:"count" yaml:"count"`
	AverageCharacterSimilarity float64 `json:"average_character_similarity" yaml:"average_character_similarity"`
	AverageWordSimilarity      float64 `json:"average_word_similarity" yaml:"average_word_similarity"`
	AverageWordAccuracy        float64 `json:"average_word_accuracy" yaml:"average_word_accuracy"`
	AverageWordErrorRate       float64 `json:"average_word_error_rate" yaml:"average_word_error_rate"`
	AverageConfidence          float64 `json:"average_confidence" yaml:"average_confidence"`
}

// Summarize averages ms. confidences, when given, must be parallel to ms.
func Summarize(ms []Metrics, confidences []float64) Summary {
	s := Summary{Count: len(ms)}
	if len(ms) == 0 {
		return s
	}
	for _, m := range ms {
		s.AverageCharacterSimilarity += m.CharacterSimilarity
		s.AverageWordSimilarity += m.WordSimilarity
		s.AverageWordAccuracy += m.WordAccuracy
		s.AverageWordErrorRate += m.WordErrorRate
	}
	count := float64(len(ms))
	s.AverageCharacterSimilarity /= count
	s.AverageWordSimilarity /= count
	s.AverageWordAccuracy /= count
	s.AverageWordErrorRate /= count

	if len(confidences) > 0 {
		var sum float64
		for _, c := range confidences {
			sum += c
		}
		s.AverageConfidence = sum / float64(len(confidences))
	}
	return s
}
