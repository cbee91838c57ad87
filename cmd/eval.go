package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/textlens/internal/utils"
	"github.com/lehigh-university-libraries/textlens/pkg/evaluation"
	"github.com/lehigh-university-libraries/textlens/pkg/imagesource"
	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

type EvalConfig struct {
	Engine         recognition.EngineKind `yaml:"engine"`
	CSVPath        string                 `yaml:"csv_path"`
	Dir            string                 `yaml:"dir"`
	TestRows       []int                  `yaml:"rows"`
	IgnorePatterns []string               `yaml:"ignore_patterns,omitempty"`
	Timestamp      string                 `yaml:"timestamp"`
}

type EvalResult struct {
	Identifier         string  `yaml:"identifier"`
	ImagePath          string  `yaml:"image_path"`
	TranscriptPath     string  `yaml:"transcript_path"`
	Public             bool    `yaml:"public"`
	Transcription      string  `yaml:"transcription"`
	Confidence         float64 `yaml:"confidence"`
	ElapsedMS          int64   `yaml:"elapsed_ms"`
	evaluation.Metrics `yaml:",inline"`
}

type EvalSummary struct {
	Config  EvalConfig         `yaml:"config"`
	Summary evaluation.Summary `yaml:"summary"`
	Results []EvalResult       `yaml:"results"`
}

// recognizer is what eval needs from the engine registry.
type recognizer interface {
	Recognize(ctx context.Context, img *recognition.Image) (recognition.Result, error)
	ActiveKind() recognition.EngineKind
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate recognition accuracy against ground-truth transcripts",
	Long: `Evaluate recognition accuracy by comparing the active engine's output with
ground truth transcripts.

The CSV has one row per image: image path, transcript path and an optional
public flag. You can either provide individual flags or use a previous
evaluation file to rerun it.`,
	RunE: runEval,
}

var (
	evalCSVPath    string
	evalConfigPath string
	evalIgnore     []string
	dir            string
	rows           []int
)

func init() {
	RootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalCSVPath, "csv", "c", "", "Path to CSV file with evaluation data")
	evalCmd.Flags().StringVar(&evalConfigPath, "config", "", "Path to previous evaluation file to rerun")
	evalCmd.Flags().StringVar(&dir, "dir", "./", "Prepend your CSV file paths with a directory")
	evalCmd.Flags().IntSliceVar(&rows, "rows", []int{}, "A list of row numbers to run the test on")
	evalCmd.Flags().StringSliceVar(&evalIgnore, "ignore", []string{}, "Markers for unreadable words or characters in the ground truth, e.g. |")

	evalCmd.MarkFlagsOneRequired("csv", "config")
	evalCmd.MarkFlagsMutuallyExclusive("csv", "config")
}

func runEval(cmd *cobra.Command, args []string) error {
	var config EvalConfig
	var err error

	if evalConfigPath != "" {
		config, err = loadEvalConfig(evalConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Printf("Loaded configuration from %s\n", evalConfigPath)
	} else {
		config = EvalConfig{
			CSVPath:        evalCSVPath,
			Dir:            dir,
			IgnorePatterns: evalIgnore,
			Timestamp:      time.Now().Format("2006-01-02_15-04-05"),
		}
	}
	if cmd.Flags().Changed("rows") {
		config.TestRows = rows
	}

	cfg, reg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()
	config.Engine = reg.ActiveKind()

	evalsDir := "evals"
	if err := os.MkdirAll(evalsDir, 0755); err != nil {
		return fmt.Errorf("failed to create evals directory: %w", err)
	}

	results, err := processEvaluation(cmd.Context(), reg, config, cfg.Workers)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	summary := EvalSummary{
		Config:  config,
		Summary: summarize(results),
		Results: results,
	}

	outputPath := filepath.Join(evalsDir, fmt.Sprintf("eval_%s.yaml", config.Timestamp))
	if err := saveEvalResults(summary, outputPath); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	fmt.Printf("\nEvaluation completed. Results saved to: %s\n", outputPath)
	printSummaryStats(summary.Summary)

	return nil
}

func loadEvalConfig(configPath string) (EvalConfig, error) {
	var summary EvalSummary

	data, err := os.ReadFile(configPath)
	if err != nil {
		return EvalConfig{}, err
	}

	if err := yaml.Unmarshal(data, &summary); err != nil {
		return EvalConfig{}, err
	}

	// Update timestamp for rerun
	summary.Config.Timestamp = time.Now().Format("2006-01-02_15-04-05")

	return summary.Config, nil
}

// readRows loads the CSV and returns the selected data rows keyed by their
// zero-based index, header excluded.
func readRows(config EvalConfig) ([]int, [][]string, error) {
	file, err := os.Open(config.CSVPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil, fmt.Errorf("CSV file is empty")
	}

	// Skip header row if present
	dataRows := records
	if strings.EqualFold(strings.TrimSpace(records[0][0]), "image") {
		dataRows = records[1:]
	}

	var indexes []int
	var selected [][]string
	for i, row := range dataRows {
		if len(config.TestRows) > 0 && !slices.Contains(config.TestRows, i) {
			slog.Debug("Skipping row", "row", i+1)
			continue
		}
		if len(row) < 2 {
			slog.Warn("Insufficient columns", "row", i+1)
			continue
		}
		indexes = append(indexes, i)
		selected = append(selected, row)
	}
	return indexes, selected, nil
}

func processEvaluation(ctx context.Context, r recognizer, config EvalConfig, workers int) ([]EvalResult, error) {
	indexes, dataRows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	results := make([]*EvalResult, len(dataRows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, row := range dataRows {
		g.Go(func() error {
			result, err := processRow(gctx, r, row, config)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Error("Error processing row", "row", indexes[i]+1, "err", utils.MaskSensitiveError(err))
				return nil
			}
			results[i] = &result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []EvalResult
	for _, res := range results {
		if res == nil {
			continue
		}
		printRowResult(*res)
		out = append(out, *res)
	}
	return out, nil
}

func processRow(ctx context.Context, r recognizer, row []string, config EvalConfig) (EvalResult, error) {
	imagePath := filepath.Join(config.Dir, strings.TrimSpace(row[0]))
	transcriptPath := strings.TrimSpace(row[1])
	if !isURL(transcriptPath) {
		transcriptPath = filepath.Join(config.Dir, transcriptPath)
	}

	public := false
	if len(row) > 2 {
		publicStr := strings.TrimSpace(row[2])
		if publicStr != "" {
			p, err := strconv.ParseBool(publicStr)
			if err != nil {
				return EvalResult{}, fmt.Errorf("invalid public value: %s", publicStr)
			}
			public = p
		}
	}

	groundTruth, err := readTextFile(ctx, transcriptPath)
	if err != nil {
		return EvalResult{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	img, err := imagesource.Open(imagePath)
	if err != nil {
		return EvalResult{}, err
	}

	res, err := r.Recognize(ctx, img)
	if err != nil {
		return EvalResult{}, err
	}

	return EvalResult{
		Identifier:     filepath.Base(imagePath),
		ImagePath:      imagePath,
		TranscriptPath: transcriptPath,
		Public:         public,
		Transcription:  res.Text,
		Confidence:     res.Confidence,
		ElapsedMS:      res.Elapsed.Milliseconds(),
		Metrics:        evaluation.CalculateAccuracyMetrics(groundTruth, res.Text, config.IgnorePatterns),
	}, nil
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func readTextFile(ctx context.Context, path string) (string, error) {
	if isURL(path) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func summarize(results []EvalResult) evaluation.Summary {
	ms := make([]evaluation.Metrics, 0, len(results))
	confidences := make([]float64, 0, len(results))
	for _, r := range results {
		ms = append(ms, r.Metrics)
		confidences = append(confidences, r.Confidence)
	}
	return evaluation.Summarize(ms, confidences)
}

func saveEvalResults(summary EvalSummary, outputPath string) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, data, 0644)
}

func printRowResult(result EvalResult) {
	fmt.Printf("\n=== Results for %s ===\n", result.Identifier)
	fmt.Printf("Image: %s\n", result.ImagePath)
	fmt.Printf("Transcript: %s\n", result.TranscriptPath)
	fmt.Printf("Confidence: %.1f%%\n", result.Confidence*100)
	fmt.Printf("Elapsed: %d ms\n", result.ElapsedMS)
	fmt.Printf("Character Similarity: %.3f\n", result.CharacterSimilarity)
	fmt.Printf("Word Similarity: %.3f\n", result.WordSimilarity)
	fmt.Printf("Word Accuracy: %.3f\n", result.WordAccuracy)
	fmt.Printf("Word Error Rate: %.3f\n", result.WordErrorRate)
	fmt.Printf("Total Words (Original): %d\n", result.TotalWordsOriginal)
	fmt.Printf("Total Words (Transcribed): %d\n", result.TotalWordsTranscribed)
	fmt.Printf("Correct Words: %d\n", result.CorrectWords)
	fmt.Printf("Substitutions: %d\n", result.Substitutions)
	fmt.Printf("Deletions: %d\n", result.Deletions)
	fmt.Printf("Insertions: %d\n", result.Insertions)
	if result.IgnoredCharsCount > 0 {
		fmt.Printf("Ignored Characters: %d\n", result.IgnoredCharsCount)
	}
}

func printSummaryStats(s evaluation.Summary) {
	if s.Count == 0 {
		return
	}

	fmt.Printf("\n=== SUMMARY STATISTICS ===\n")
	fmt.Printf("Total Evaluations: %d\n", s.Count)
	fmt.Printf("Average Character Similarity: %.3f\n", s.AverageCharacterSimilarity)
	fmt.Printf("Average Word Similarity: %.3f\n", s.AverageWordSimilarity)
	fmt.Printf("Average Word Accuracy: %.3f\n", s.AverageWordAccuracy)
	fmt.Printf("Average Word Error Rate: %.3f\n", s.AverageWordErrorRate)
	fmt.Printf("Average Confidence: %.1f%%\n", s.AverageConfidence*100)
}
