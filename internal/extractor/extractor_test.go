package extractor

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzePythonFunction(t *testing.T) {
	rec := Analyze("util.py", "def add(a, b):\n    return a+b\n")

	assert.Equal(t, LangPython, rec.Language)
	assert.Equal(t, LangPython, rec.DetectedLanguage)
	assert.Equal(t, "python", rec.Strategy)
	require.Len(t, rec.Functions, 1)
	assert.Equal(t, "add", rec.Functions[0].Name)
	assert.Equal(t, []string{"a", " b"}, rec.Functions[0].Parameters)
	assert.Empty(t, rec.Classes)
	assert.Empty(t, rec.Imports)
	assert.Equal(t, 2, rec.LineCount)
	assert.Equal(t, 30, rec.SizeBytes)
}

func TestAnalyzeJavaScriptFunctionAndImport(t *testing.T) {
	rec := Analyze("app.js", "import x from 'y';\nfunction greet(name) { return name; }")

	assert.Equal(t, LangJavaScript, rec.Language)
	require.Len(t, rec.Functions, 1)
	assert.Equal(t, "greet", rec.Functions[0].Name)
	assert.Equal(t, []string{"import x from 'y';"}, rec.Imports)
	assert.Empty(t, rec.Classes)
	assert.Equal(t, 2, rec.LineCount)
}

func TestAnalyzeLanguageWithoutStrategy(t *testing.T) {
	rec := Analyze("Main.java", "class Main { }")

	assert.Equal(t, LangUnknown, rec.Language)
	assert.Equal(t, LangJava, rec.DetectedLanguage)
	assert.Equal(t, "generic", rec.Strategy)
	assert.Empty(t, rec.Functions)
	assert.Empty(t, rec.Classes)
	assert.Empty(t, rec.Imports)
	assert.Equal(t, 1, rec.LineCount)
}

func TestAnalyzeEmptyContent(t *testing.T) {
	for _, name := range []string{"a.py", "a.js", "a.ts", "Main.java", "README", ""} {
		t.Run(name, func(t *testing.T) {
			rec := Analyze(name, "")
			assert.Equal(t, 0, rec.SizeBytes)
			assert.Equal(t, 0, rec.LineCount)
			assert.NotNil(t, rec.Functions)
			assert.NotNil(t, rec.Classes)
			assert.NotNil(t, rec.Imports)
			assert.Zero(t, rec.FunctionCount())
			assert.Zero(t, rec.ClassCount())
			assert.Zero(t, rec.ImportCount())
		})
	}
}

func TestAnalyzeNoExtension(t *testing.T) {
	rec := Analyze("README", "def looks_like_python(): pass\n")

	assert.Equal(t, LangUnknown, rec.Language)
	assert.Equal(t, LangUnknown, rec.DetectedLanguage)
	assert.Empty(t, rec.Functions)
	assert.Equal(t, 1, rec.LineCount)
}

func TestAnalyzeIdempotent(t *testing.T) {
	src := "import os\nclass A:\n    def f(self, x):\n        pass\n"
	first := Analyze("mod.py", src)
	second := Analyze("mod.py", src)
	assert.Equal(t, first, second)
}

func TestRecordCountsMatchSlices(t *testing.T) {
	inputs := map[string]string{
		"a.py":   "import a\nfrom b import c\ndef f(): pass\ndef f(x): pass\nclass K: pass\n",
		"b.ts":   "import {a} from 'a'\nconst r = require('r')\nclass X {}\nfunction g() {}\n",
		"c.go":   "package main\nfunc main() {}\n",
		"d":      "\x00\x01binary-ish",
		"e.java": "",
	}
	for name, src := range inputs {
		rec := Analyze(name, src)
		assert.Equal(t, len(rec.Functions), rec.FunctionCount(), name)
		assert.Equal(t, len(rec.Classes), rec.ClassCount(), name)
		assert.Equal(t, len(rec.Imports), rec.ImportCount(), name)
	}
}

func TestRecordJSONIncludesDerivedCounts(t *testing.T) {
	rec := Analyze("a.py", "import os\ndef f(a): pass\n")
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1), decoded["function_count"])
	assert.Equal(t, float64(0), decoded["class_count"])
	assert.Equal(t, float64(1), decoded["import_count"])
	assert.Equal(t, "a.py", decoded["file_path"])
	assert.Equal(t, []interface{}{}, decoded["classes"])
}

type panicStrategy struct{}

func (panicStrategy) Name() string           { return "boom" }
func (panicStrategy) Extract(string) Partial { panic("pattern engine fault") }

func TestAnalyzeRecoversStrategyFault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := New(
		WithTable(NewTable(map[Language]Strategy{LangPython: panicStrategy{}}, nil)),
		WithLogger(logger),
	)

	rec, err := e.TryAnalyze("broken.py", "def f(): pass\n")
	require.Error(t, err)

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "broken.py", fault.Path)
	assert.Equal(t, "boom", fault.Strategy)

	assert.Equal(t, LangUnknown, rec.Language)
	assert.Equal(t, LangPython, rec.DetectedLanguage)
	assert.Equal(t, "generic", rec.Strategy)
	assert.Empty(t, rec.Functions)
	assert.Equal(t, 1, rec.LineCount)
	assert.Contains(t, buf.String(), "broken.py")

	assert.NotPanics(t, func() { e.Analyze("broken.py", "x") })
}

func TestExtractDispatchIsTotal(t *testing.T) {
	e := New()
	for _, lang := range []Language{LangJava, LangCPP, LangGo, LangUnknown, "", "cobol"} {
		p := e.Extract(lang, "def f(a): pass\nclass A {}\nimport x\nfunction g() {}\n")
		assert.Empty(t, p.Functions, lang)
		assert.Empty(t, p.Classes, lang)
		assert.Empty(t, p.Imports, lang)
	}

	p := e.Extract(LangTypeScript, "export class Foo {}\n")
	require.Len(t, p.Classes, 1)
	assert.Equal(t, "Foo", p.Classes[0].Name)
}

func TestAnalyzeConcurrentUse(t *testing.T) {
	e := New()
	src := "import os\ndef f(a, b): pass\nclass C: pass\n"
	want := e.Analyze("x.py", src)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, e.Analyze("x.py", src))
		}()
	}
	wg.Wait()
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
		{"\n", 1},
		{"\n\n", 2},
		{"a\r\nb\r\n", 2},
		{"a\rb", 2},
		{"a\n\nb", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CountLines(tt.in), "%q", tt.in)
		assert.Len(t, splitLines(tt.in), tt.want, "%q", tt.in)
	}
}
