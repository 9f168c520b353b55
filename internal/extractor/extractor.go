// Package extractor classifies source files by name and extracts a
// best-effort inventory of functions, classes and imports with lexical
// patterns. It never builds a syntax tree.
package extractor

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// FaultError reports a fault recovered while extracting one file.
type FaultError struct {
	Path     string
	Strategy string
	Cause    interface{}
	Stack    []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("extraction fault in %s (strategy %s): %v", e.Path, e.Strategy, e.Cause)
}

type Extractor struct {
	classifier *Classifier
	table      *Table
	logger     *slog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithClassifier replaces the default suffix classifier
func WithClassifier(c *Classifier) Option {
	return func(e *Extractor) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithTable replaces the default dispatch table
func WithTable(t *Table) Option {
	return func(e *Extractor) {
		if t != nil {
			e.table = t
		}
	}
}

// WithLogger sets the logger used for fault diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.classifier == nil {
		e.classifier = NewClassifier(DefaultSuffixes())
	}
	if e.table == nil {
		e.table = DefaultTable()
	}
	return e
}

var defaultExtractor = New()

// Analyze runs the default extractor.
func Analyze(filename, content string) Record {
	return defaultExtractor.Analyze(filename, content)
}

func (e *Extractor) Classifier() *Classifier { return e.classifier }
func (e *Extractor) Table() *Table           { return e.table }

// Classify returns the language tag for filename.
func (e *Extractor) Classify(filename string) Language {
	return e.classifier.Classify(filename)
}

// Extract runs the strategy selected for lang over content.
func (e *Extractor) Extract(lang Language, content string) Partial {
	s, _ := e.table.Lookup(lang)
	return s.Extract(content)
}

// Analyze classifies filename, extracts content and assembles the record.
// It never panics: a fault inside a strategy is logged and yields an empty
// record.
func (e *Extractor) Analyze(filename, content string) Record {
	rec, _ := e.TryAnalyze(filename, content)
	return rec
}

// TryAnalyze is Analyze that also returns the recovered fault, if any. The
// record is well-formed either way.
func (e *Extractor) TryAnalyze(filename, content string) (Record, error) {
	detected := e.classifier.Classify(filename)
	s, dedicated := e.table.Lookup(detected)
	lang := detected
	if !dedicated {
		lang = LangUnknown
	}

	p, err := runStrategy(s, filename, content)
	if err != nil {
		e.log().Error("extraction failed, returning empty record",
			"file", filename,
			"language", string(detected),
			"strategy", s.Name(),
			"error", err)
		return newRecord(filename, detected, LangUnknown, e.table.Fallback().Name(), Partial{}, content), err
	}
	return newRecord(filename, detected, lang, s.Name(), p, content), nil
}

func runStrategy(s Strategy, filename, content string) (p Partial, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FaultError{Path: filename, Strategy: s.Name(), Cause: r, Stack: debug.Stack()}
		}
	}()
	return s.Extract(content), nil
}

func (e *Extractor) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
