package indexer

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heefoo/codeoracle/internal/extractor"
	"github.com/heefoo/codeoracle/internal/metrics"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// counterValue sums every sample of the named counter family.
func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestDecode(t *testing.T) {
	text, err := Decode([]byte("\xEF\xBB\xBFimport os\n"))
	require.NoError(t, err)
	assert.Equal(t, "import os\n", text)

	text, err = Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	_, err = Decode([]byte{'a', 0xff, 0xfe, 'b'})
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestAnalyzeContentRejectsInvalidEncoding(t *testing.T) {
	m := metrics.New()
	idx := New(Config{Metrics: m})

	_, err := idx.AnalyzeContent("bad.py", []byte{0xC3, 0x28})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Contains(t, err.Error(), "bad.py")
	assert.Equal(t, float64(1), counterValue(t, m, "codeoracle_file_errors_total"))
	assert.Zero(t, counterValue(t, m, "codeoracle_files_analyzed_total"))
}

func TestAnalyzeContent(t *testing.T) {
	m := metrics.New()
	idx := New(Config{Metrics: m})

	rec, err := idx.AnalyzeContent("util.py", []byte("def add(a, b):\n    return a+b\n"))
	require.NoError(t, err)
	assert.Equal(t, extractor.LangPython, rec.Language)
	assert.Equal(t, 1, rec.FunctionCount())
	assert.Equal(t, float64(1), counterValue(t, m, "codeoracle_files_analyzed_total"))
	assert.Equal(t, float64(30), counterValue(t, m, "codeoracle_bytes_analyzed_total"))
}

func TestAnalyzeFile(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"app.js": "import x from 'y';\nfunction greet(name) { return name; }",
	})
	idx := New(Config{})

	rec, err := idx.AnalyzeFile(context.Background(), filepath.Join(dir, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app.js"), rec.Path)
	assert.Equal(t, extractor.LangJavaScript, rec.Language)
	assert.Equal(t, []string{"import x from 'y';"}, rec.Imports)

	_, err = idx.AnalyzeFile(context.Background(), filepath.Join(dir, "missing.py"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = idx.AnalyzeFile(context.Background(), dir)
	assert.Error(t, err)
}

func TestAnalyzeFileTooLarge(t *testing.T) {
	dir := writeTree(t, map[string]string{"big.py": "def f(): pass\n" + string(make([]byte, 64))})
	idx := New(Config{MaxFileBytes: 32})

	_, err := idx.AnalyzeFile(context.Background(), filepath.Join(dir, "big.py"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = idx.AnalyzeContent("big.py", make([]byte, 33))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestAnalyzeFileFaultStillReturnsRecord(t *testing.T) {
	m := metrics.New()
	boom := extractor.StrategyFunc{ID: "boom", Fn: func(string) extractor.Partial { panic("bad pattern") }}
	ex := extractor.New(
		extractor.WithTable(extractor.NewTable(map[extractor.Language]extractor.Strategy{extractor.LangPython: boom}, nil)),
		extractor.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	idx := New(Config{Extractor: ex, Metrics: m})

	rec, err := idx.AnalyzeContent("x.py", []byte("def f(): pass\n"))
	var fault *extractor.FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "generic", rec.Strategy)
	assert.Equal(t, 1, rec.LineCount)
	assert.Equal(t, float64(1), counterValue(t, m, "codeoracle_extraction_faults_total"))
}

func TestAnalyzeDirectory(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.py":                  "import os\ndef main(argv):\n    pass\n",
		"lib/util.py":              "class Helper:\n    def run(self):\n        pass\n",
		"web/app.ts":               "import {a} from 'a';\nexport class App {}\n",
		"web/node_modules/x/i.js":  "function hidden() {}\n",
		"web/bundle.min.js":        "function min(){}",
		"Main.java":                "class Main { }",
		"README.md":                "# readme\n",
		"bad.py":                   "\xff\xfe",
		".git/hooks/pre-commit.py": "def hook(): pass\n",
	})

	var mu sync.Mutex
	var updates []Status
	idx := New(Config{Workers: 3})

	result, err := idx.AnalyzeDirectory(context.Background(), dir, func(s Status) {
		mu.Lock()
		updates = append(updates, s)
		mu.Unlock()
	})
	require.NoError(t, err)

	var paths []string
	for _, f := range result.Files {
		rel, _ := filepath.Rel(dir, f.Path)
		paths = append(paths, filepath.ToSlash(rel))
	}
	// walk order is lexical
	assert.Equal(t, []string{"Main.java", "bad.py", "lib/util.py", "main.py", "web/app.ts"}, paths)

	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err)

	s := result.Summary
	assert.Equal(t, 4, s.Files)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Skipped) // README.md and bundle.min.js
	assert.Equal(t, 2, s.Functions)
	assert.Equal(t, 2, s.Classes)
	assert.Equal(t, 2, s.Imports)

	langs := map[string]LanguageSummary{}
	for _, ls := range s.Languages {
		langs[ls.Language] = ls
	}
	assert.Equal(t, 2, langs["python"].Files)
	assert.Equal(t, 1, langs["typescript"].Files)
	assert.Equal(t, 1, langs["unknown"].Files)

	assert.Len(t, result.Records(), 4)
	assert.Contains(t, result.Files[1].Error, ErrInvalidEncoding.Error())

	status := idx.GetStatus()
	assert.Equal(t, "idle", status.State)
	assert.Equal(t, int64(5), status.FilesTotal)
	assert.Equal(t, int64(4), status.FilesAnalyzed)
	assert.Equal(t, int64(1), status.FilesFailed)
	assert.Equal(t, result.RunID, status.RunID)
	assert.False(t, status.CompletedAt.IsZero())

	require.NotEmpty(t, updates)
	assert.Equal(t, "idle", updates[len(updates)-1].State)
}

func TestAnalyzeDirectoryIncludeUnknown(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"notes.txt": "hello\nworld\n",
		"a.py":      "def f(): pass\n",
	})
	idx := New(Config{IncludeUnknown: true, ExcludePatterns: []string{}})

	result, err := idx.AnalyzeDirectory(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, result.Files, 2)

	rec := result.Files[1].Record
	require.NotNil(t, rec)
	assert.Equal(t, extractor.LangUnknown, rec.Language)
	assert.Equal(t, "generic", rec.Strategy)
	assert.Equal(t, 2, rec.LineCount)
}

func TestAnalyzeDirectoryRejectsFile(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.py": ""})
	idx := New(Config{})

	_, err := idx.AnalyzeDirectory(context.Background(), filepath.Join(dir, "a.py"), nil)
	assert.Error(t, err)

	_, err = idx.AnalyzeDirectory(context.Background(), filepath.Join(dir, "nope"), nil)
	assert.Error(t, err)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Files)
	assert.NotNil(t, s.Languages)
	assert.Empty(t, s.Languages)
}

func TestGetStatusReturnsCopy(t *testing.T) {
	idx := New(Config{})
	idx.addError("first")

	s := idx.GetStatus()
	s.Errors[0] = "mutated"
	assert.Equal(t, "first", idx.GetStatus().Errors[0])
}
