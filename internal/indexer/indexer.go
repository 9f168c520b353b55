package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/heefoo/codeoracle/internal/config"
	"github.com/heefoo/codeoracle/internal/extractor"
	"github.com/heefoo/codeoracle/internal/metrics"
	"github.com/heefoo/codeoracle/internal/util"
)

var (
	// ErrInvalidEncoding is returned for content that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid text encoding")
	// ErrFileTooLarge is returned for files over the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Status represents the current analysis status
type Status struct {
	State         string    `json:"state"` // idle, analyzing, error
	Directory     string    `json:"directory,omitempty"`
	RunID         string    `json:"run_id,omitempty"`
	FilesTotal    int64     `json:"files_total"`    // Files queued for analysis
	FilesAnalyzed int64     `json:"files_analyzed"` // Files that produced a record
	FilesSkipped  int64     `json:"files_skipped"`  // Excluded or unknown-language files
	FilesFailed   int64     `json:"files_failed"`   // Read, size or decode failures
	Faults        int64     `json:"faults"`         // Records produced by fault recovery
	Errors        []string  `json:"errors,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Indexer reads files from disk, decodes them and runs the extractor over
// them, one at a time or across a directory tree.
type Indexer struct {
	extractor      *extractor.Extractor
	logger         *slog.Logger
	metrics        *metrics.Metrics
	excludes       *util.PatternSet
	workers        int
	maxFileBytes   int64
	includeUnknown bool

	mu     sync.RWMutex
	status Status
}

// Config holds indexer configuration
type Config struct {
	Extractor       *extractor.Extractor // optional, defaults to extractor.New()
	Logger          *slog.Logger         // optional
	Metrics         *metrics.Metrics     // optional
	ExcludePatterns []string
	Workers         int
	MaxFileBytes    int64 // 0 means unlimited
	IncludeUnknown  bool  // analyze files whose suffix is not in the table
}

// New creates a new Indexer
func New(cfg Config) *Indexer {
	if cfg.ExcludePatterns == nil {
		cfg.ExcludePatterns = config.DefaultExcludePatterns()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extractor.New(extractor.WithLogger(cfg.Logger))
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Indexer{
		extractor:      cfg.Extractor,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		excludes:       util.CompilePatterns(cfg.ExcludePatterns, cfg.Logger),
		workers:        cfg.Workers,
		maxFileBytes:   cfg.MaxFileBytes,
		includeUnknown: cfg.IncludeUnknown,
		status: Status{
			State: "idle",
		},
	}
}

func (idx *Indexer) Extractor() *extractor.Extractor { return idx.extractor }

// Excluded reports whether relPath matches an exclude pattern.
func (idx *Indexer) Excluded(relPath string) bool {
	return idx.excludes.Match(relPath)
}

// Supported reports whether a directory scan would pick up path.
func (idx *Indexer) Supported(path string) bool {
	return idx.includeUnknown || idx.extractor.Classify(path) != extractor.LangUnknown
}

// GetStatus returns a copy of the current analysis status
func (idx *Indexer) GetStatus() Status {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s := idx.status
	if s.Errors != nil {
		s.Errors = append([]string(nil), idx.status.Errors...)
	}
	return s
}

// Decode turns raw file bytes into text. A leading UTF-8 byte order mark is
// dropped; anything that is not valid UTF-8 is rejected.
func Decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrInvalidEncoding
	}
	return string(data), nil
}

// HashFile computes the SHA256 of a file's content, checking ctx between
// chunks.
func HashFile(ctx context.Context, filePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// AnalyzeFile reads, decodes and analyzes a single file. A recovered
// extraction fault is returned together with the (empty) record.
func (idx *Indexer) AnalyzeFile(ctx context.Context, path string) (extractor.Record, error) {
	if err := ctx.Err(); err != nil {
		return extractor.Record{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		idx.metrics.ObserveFileError("read")
		return extractor.Record{}, err
	}
	if info.IsDir() {
		return extractor.Record{}, fmt.Errorf("%s is a directory", path)
	}
	if idx.maxFileBytes > 0 && info.Size() > idx.maxFileBytes {
		idx.metrics.ObserveFileError("too_large")
		return extractor.Record{}, fmt.Errorf("%s: %w (%d bytes, limit %d)", path, ErrFileTooLarge, info.Size(), idx.maxFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		idx.metrics.ObserveFileError("read")
		return extractor.Record{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return idx.AnalyzeContent(path, data)
}

// AnalyzeContent decodes data and analyzes it under filename, which is only
// used for classification.
func (idx *Indexer) AnalyzeContent(filename string, data []byte) (extractor.Record, error) {
	if idx.maxFileBytes > 0 && int64(len(data)) > idx.maxFileBytes {
		idx.metrics.ObserveFileError("too_large")
		return extractor.Record{}, fmt.Errorf("%s: %w (%d bytes, limit %d)", filename, ErrFileTooLarge, len(data), idx.maxFileBytes)
	}

	text, err := Decode(data)
	if err != nil {
		idx.metrics.ObserveFileError("decode")
		return extractor.Record{}, fmt.Errorf("%s: %w", filename, err)
	}

	start := time.Now()
	rec, err := idx.extractor.TryAnalyze(filename, text)
	idx.metrics.ObserveFile(string(rec.Language), rec.Strategy, rec.SizeBytes,
		rec.FunctionCount(), rec.ClassCount(), rec.ImportCount(), time.Since(start))

	var fault *extractor.FaultError
	if errors.As(err, &fault) {
		idx.metrics.ObserveFault(fault.Strategy)
	}
	return rec, err
}

// AnalyzeDirectory analyzes every supported file under dir. Per-file
// failures are collected in the result and never abort the run. Files come
// back in walk order regardless of which worker handled them.
func (idx *Indexer) AnalyzeDirectory(ctx context.Context, dir string, progressCb func(Status)) (*Result, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	runID := uuid.NewString()
	idx.mu.Lock()
	idx.status = Status{
		State:     "analyzing",
		Directory: absDir,
		RunID:     runID,
		StartedAt: time.Now(),
		Errors:    []string{},
	}
	idx.mu.Unlock()

	log := idx.logger.With("run_id", runID, "directory", absDir)
	log.Info("analysis started")

	var paths []string
	var skipped int64

	err = filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn("skipping unreadable path", "path", path, "error", err)
			idx.addError(fmt.Sprintf("walk error: %s: %v", path, err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(absDir, path)
		if relErr != nil || rel == "." {
			return nil
		}

		if info.IsDir() {
			if idx.excludes.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if idx.excludes.Match(rel) || !idx.Supported(path) {
			skipped++
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		idx.setError(fmt.Sprintf("directory walk error: %v", err))
		return nil, err
	}

	idx.mu.Lock()
	idx.status.FilesTotal = int64(len(paths))
	idx.status.FilesSkipped = skipped
	idx.mu.Unlock()

	if progressCb != nil {
		progressCb(idx.GetStatus())
	}

	files := analyzePool(ctx, paths, idx.workers, func(path string) FileResult {
		fr := FileResult{Path: path}
		rec, err := idx.AnalyzeFile(ctx, path)

		var fault *extractor.FaultError
		switch {
		case err == nil:
			fr.Record = &rec
		case errors.As(err, &fault):
			fr.Record = &rec
			fr.Error = err.Error()
		default:
			fr.Error = err.Error()
		}

		idx.mu.Lock()
		if fr.Record != nil {
			idx.status.FilesAnalyzed++
		} else {
			idx.status.FilesFailed++
		}
		if err != nil {
			if fault != nil {
				idx.status.Faults++
			}
			idx.status.Errors = append(idx.status.Errors, err.Error())
			idx.status.LastError = err.Error()
		}
		idx.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			log.Warn("file analysis failed", "file", path, "error", err)
		}
		if progressCb != nil {
			progressCb(idx.GetStatus())
		}
		return fr
	})

	result := &Result{
		RunID:     runID,
		Directory: absDir,
		Files:     files,
		Summary:   Summarize(files),
	}
	result.Summary.Skipped = int(skipped)

	if err := ctx.Err(); err != nil {
		idx.setError(fmt.Sprintf("analysis cancelled: %v", err))
		log.Warn("analysis cancelled", "error", err)
		return result, err
	}

	idx.mu.Lock()
	idx.status.State = "idle"
	idx.status.CompletedAt = time.Now()
	idx.mu.Unlock()

	if progressCb != nil {
		progressCb(idx.GetStatus())
	}

	log.Info("analysis completed",
		"files", result.Summary.Files,
		"failed", result.Summary.Failed,
		"skipped", result.Summary.Skipped,
		"functions", result.Summary.Functions,
		"classes", result.Summary.Classes,
		"imports", result.Summary.Imports)
	return result, nil
}

// FileResult is the outcome for one file of a directory run. Record is nil
// when the file could not be read or decoded.
type FileResult struct {
	Path   string            `json:"path" yaml:"path"`
	Record *extractor.Record `json:"record,omitempty" yaml:"record,omitempty"`
	Error  string            `json:"error,omitempty" yaml:"error,omitempty"`
}

type Result struct {
	RunID     string       `json:"run_id" yaml:"run_id"`
	Directory string       `json:"directory" yaml:"directory"`
	Files     []FileResult `json:"files" yaml:"files"`
	Summary   Summary      `json:"summary" yaml:"summary"`
}

// Records returns the records of the files that produced one, in order.
func (r *Result) Records() []extractor.Record {
	out := make([]extractor.Record, 0, len(r.Files))
	for _, f := range r.Files {
		if f.Record != nil {
			out = append(out, *f.Record)
		}
	}
	return out
}

type LanguageSummary struct {
	Language  string `json:"language" yaml:"language"`
	Files     int    `json:"files" yaml:"files"`
	Functions int    `json:"functions" yaml:"functions"`
	Classes   int    `json:"classes" yaml:"classes"`
	Imports   int    `json:"imports" yaml:"imports"`
	Lines     int    `json:"lines" yaml:"lines"`
	Bytes     int64  `json:"bytes" yaml:"bytes"`
}

// Summary aggregates a run. Languages is sorted by language tag and counts
// each record under its reported language.
type Summary struct {
	Files     int               `json:"files" yaml:"files"`
	Failed    int               `json:"failed" yaml:"failed"`
	Skipped   int               `json:"skipped" yaml:"skipped"`
	Faults    int               `json:"faults" yaml:"faults"`
	Functions int               `json:"functions" yaml:"functions"`
	Classes   int               `json:"classes" yaml:"classes"`
	Imports   int               `json:"imports" yaml:"imports"`
	Lines     int               `json:"lines" yaml:"lines"`
	Bytes     int64             `json:"bytes" yaml:"bytes"`
	Languages []LanguageSummary `json:"languages" yaml:"languages"`
}

// Summarize aggregates file results. Skipped is left at zero.
func Summarize(files []FileResult) Summary {
	var s Summary
	byLang := make(map[string]*LanguageSummary)

	for _, f := range files {
		if f.Record == nil {
			s.Failed++
			continue
		}
		rec := f.Record
		if f.Error != "" {
			s.Faults++
		}
		s.Files++
		s.Functions += rec.FunctionCount()
		s.Classes += rec.ClassCount()
		s.Imports += rec.ImportCount()
		s.Lines += rec.LineCount
		s.Bytes += int64(rec.SizeBytes)

		lang := string(rec.Language)
		ls, ok := byLang[lang]
		if !ok {
			ls = &LanguageSummary{Language: lang}
			byLang[lang] = ls
		}
		ls.Files++
		ls.Functions += rec.FunctionCount()
		ls.Classes += rec.ClassCount()
		ls.Imports += rec.ImportCount()
		ls.Lines += rec.LineCount
		ls.Bytes += int64(rec.SizeBytes)
	}

	s.Languages = make([]LanguageSummary, 0, len(byLang))
	for _, ls := range byLang {
		s.Languages = append(s.Languages, *ls)
	}
	sort.Slice(s.Languages, func(i, j int) bool {
		return s.Languages[i].Language < s.Languages[j].Language
	})
	return s
}

func (idx *Indexer) addError(msg string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.status.Errors = append(idx.status.Errors, msg)
}

func (idx *Indexer) setError(msg string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.status.State = "error"
	idx.status.LastError = msg
	idx.status.Errors = append(idx.status.Errors, msg)
}
