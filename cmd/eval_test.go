package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/textlens/pkg/recognition"
)

type fakeRecognizer struct {
	mu    sync.Mutex
	texts map[string]string
	calls int
}

func (f *fakeRecognizer) ActiveKind() recognition.EngineKind { return recognition.KindModel }

func (f *fakeRecognizer) Recognize(_ context.Context, img *recognition.Image) (recognition.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	text, ok := f.texts[filepath.Base(img.Source())]
	if !ok {
		return recognition.Result{}, &recognition.RecognitionError{Kind: recognition.KindModel, Err: errors.New("no answer")}
	}
	return recognition.Result{Text: text, Confidence: 0.9, Elapsed: 12 * time.Millisecond, Engine: recognition.KindModel}, nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// evalFixture lays out three rows: two readable pages and one whose image
// does not decode.
func evalFixture(t *testing.T) EvalConfig {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "one.png"))
	writePNG(t, filepath.Join(root, "two.png"))
	writeFile(t, filepath.Join(root, "broken.png"), "not a png")
	writeFile(t, filepath.Join(root, "one.txt"), "hello world")
	writeFile(t, filepath.Join(root, "two.txt"), "the | cat")
	writeFile(t, filepath.Join(root, "broken.txt"), "anything")

	csvPath := filepath.Join(root, "eval.csv")
	writeFile(t, csvPath, "image,transcript,public\none.png,one.txt,true\ntwo.png,two.txt,0\nbroken.png,broken.txt,\n")
	return EvalConfig{CSVPath: csvPath, Dir: root, IgnorePatterns: []string{"|"}}
}

func TestReadRows(t *testing.T) {
	config := evalFixture(t)

	indexes, rows, err := readRows(config)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || fmt.Sprint(indexes) != "[0 1 2]" {
		t.Fatalf("got indexes %v rows %v", indexes, rows)
	}

	config.TestRows = []int{1}
	indexes, rows, err = readRows(config)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || indexes[0] != 1 || rows[0][0] != "two.png" {
		t.Errorf("row selection: indexes %v rows %v", indexes, rows)
	}
}

func TestReadRows_Errors(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "empty.csv")
	writeFile(t, empty, "")

	if _, _, err := readRows(EvalConfig{CSVPath: empty}); err == nil {
		t.Error("expected error for empty CSV")
	}
	if _, _, err := readRows(EvalConfig{CSVPath: filepath.Join(root, "missing.csv")}); err == nil {
		t.Error("expected error for missing CSV")
	}
}

func TestProcessEvaluation(t *testing.T) {
	config := evalFixture(t)
	r := &fakeRecognizer{texts: map[string]string{
		"one.png":    "hello world",
		"two.png":    "the black cat",
		"broken.png": "never asked",
	}}

	results, err := processEvaluation(context.Background(), r, config, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (broken image skipped)", len(results))
	}
	if r.calls != 2 {
		t.Errorf("recognizer called %d times, want 2", r.calls)
	}

	one, two := results[0], results[1]
	if one.Identifier != "one.png" || !one.Public || one.WordAccuracy != 1.0 || one.ElapsedMS != 12 {
		t.Errorf("first result %+v", one)
	}
	if two.Identifier != "two.png" || two.Public {
		t.Errorf("second result %+v", two)
	}
	if two.IgnoredCharsCount != 1 || two.WordAccuracy != 1.0 {
		t.Errorf("ignore pattern not applied: %+v", two.Metrics)
	}

	s := summarize(results)
	if s.Count != 2 || s.AverageConfidence != 0.9 || s.AverageWordAccuracy != 1.0 {
		t.Errorf("summary %+v", s)
	}
}

func TestProcessEvaluation_RecognitionFailureSkipsRow(t *testing.T) {
	config := evalFixture(t)
	config.TestRows = []int{0, 1}
	r := &fakeRecognizer{texts: map[string]string{"two.png": "the cat"}}

	results, err := processEvaluation(context.Background(), r, config, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Identifier != "two.png" {
		t.Errorf("results %+v", results)
	}
}

func TestProcessRow_InvalidPublic(t *testing.T) {
	config := evalFixture(t)
	_, err := processRow(context.Background(), &fakeRecognizer{}, []string{"one.png", "one.txt", "maybe"}, config)
	if err == nil || !strings.Contains(err.Error(), "invalid public value") {
		t.Errorf("err = %v", err)
	}
}

func TestReadTextFile_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.txt" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "remote transcript")
	}))
	defer srv.Close()

	got, err := readTextFile(context.Background(), srv.URL+"/page.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "remote transcript" {
		t.Errorf("got %q", got)
	}
	if _, err := readTextFile(context.Background(), srv.URL+"/missing.txt"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestEvalResultsRoundTrip(t *testing.T) {
	config := evalFixture(t)
	config.Timestamp = "2024-01-01_00-00-00"
	config.TestRows = []int{0}
	results, err := processEvaluation(context.Background(), &fakeRecognizer{texts: map[string]string{"one.png": "hello world"}}, config, 1)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "eval.yaml")
	if err := saveEvalResults(EvalSummary{Config: config, Summary: summarize(results), Results: results}, out); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "word_accuracy: 1") {
		t.Errorf("metrics not inlined:\n%s", data)
	}

	loaded, err := loadEvalConfig(out)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.CSVPath != config.CSVPath || fmt.Sprint(loaded.TestRows) != "[0]" || loaded.Timestamp == config.Timestamp {
		t.Errorf("loaded config %+v", loaded)
	}
}
