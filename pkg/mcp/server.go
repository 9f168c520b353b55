package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/heefoo/codeoracle/internal/config"
	"github.com/heefoo/codeoracle/internal/extractor"
	"github.com/heefoo/codeoracle/internal/indexer"
	"github.com/heefoo/codeoracle/internal/metrics"
)

const serverName = "codeoracle"

type Server struct {
	indexer *indexer.Indexer
	config  *config.Config
	metrics *metrics.Metrics
	logger  *slog.Logger
	mcp     *server.MCPServer
}

type ServerConfig struct {
	Indexer *indexer.Indexer // optional, built from Config when nil
	Config  *config.Config
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Version string
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Config == nil {
		cfg.Config = config.DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Indexer == nil {
		maxBytes, _ := cfg.Config.MaxFileBytes()
		cfg.Indexer = indexer.New(indexer.Config{
			Extractor: extractor.New(
				extractor.WithClassifier(extractor.NewClassifier(cfg.Config.SuffixTable())),
				extractor.WithLogger(cfg.Logger),
			),
			Logger:          cfg.Logger,
			Metrics:         cfg.Metrics,
			ExcludePatterns: cfg.Config.Scan.ExcludePatterns,
			Workers:         cfg.Config.Scan.Workers,
			MaxFileBytes:    maxBytes,
			IncludeUnknown:  cfg.Config.Scan.IncludeUnknown,
		})
	}

	s := &Server{
		indexer: cfg.Indexer,
		config:  cfg.Config,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}

	mcpServer := server.NewMCPServer(
		serverName,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.registerTools(mcpServer)

	s.mcp = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool(
		"analyze_file",
		mcp.WithDescription("Extract functions, classes and imports from one file's content. The filename only selects the language by suffix. Returns the analysis record as JSON."),
		mcp.WithString("filename",
			mcp.Required(),
			mcp.Description("File name or path, e.g. 'src/app.ts'")),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Full text content of the file")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), s.handleAnalyzeFile)

	mcpServer.AddTool(mcp.NewTool(
		"detect_language",
		mcp.WithDescription("Classify a file name by suffix. Returns the language tag and the extraction strategy that would handle it."),
		mcp.WithString("filename",
			mcp.Required(),
			mcp.Description("File name or path")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), s.handleDetectLanguage)

	mcpServer.AddTool(mcp.NewTool(
		"analyze_path",
		mcp.WithDescription("Analyze a file or directory on the server's filesystem. Directories are scanned recursively, honouring exclude patterns. Returns records and a per-language summary."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File or directory path")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), s.handleAnalyzePath)

	mcpServer.AddTool(mcp.NewTool(
		"list_languages",
		mcp.WithDescription("List the recognised file suffixes with their language tag and extraction strategy."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), s.handleListLanguages)
}

// Tool handlers

func (s *Server) handleAnalyzeFile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := parseToolArguments(request)
	if errResult != nil {
		return errResult, nil
	}
	filename, _ := args["filename"].(string)
	content, ok := args["content"].(string)
	if filename == "" {
		return errorResult("filename parameter is required")
	}
	if !ok {
		return errorResult("content parameter is required and must be a string")
	}

	rec, err := s.indexer.AnalyzeContent(filename, []byte(content))
	var fault *extractor.FaultError
	if err != nil && !errors.As(err, &fault) {
		return errorResult(err.Error())
	}
	return jsonResult(rec)
}

type languageInfo struct {
	Suffix   string `json:"suffix,omitempty"`
	Filename string `json:"filename,omitempty"`
	Language string `json:"language"`
	Detected string `json:"detected_language"`
	Strategy string `json:"strategy"`
}

func (s *Server) describe(lang extractor.Language) (extractor.Language, string) {
	strategy, dedicated := s.indexer.Extractor().Table().Lookup(lang)
	if !dedicated {
		return extractor.LangUnknown, strategy.Name()
	}
	return lang, strategy.Name()
}

func (s *Server) handleDetectLanguage(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := parseToolArguments(request)
	if errResult != nil {
		return errResult, nil
	}
	filename, _ := args["filename"].(string)
	if filename == "" {
		return errorResult("filename parameter is required")
	}

	detected := s.indexer.Extractor().Classify(filename)
	lang, strategy := s.describe(detected)
	return jsonResult(languageInfo{
		Filename: filename,
		Language: string(lang),
		Detected: string(detected),
		Strategy: strategy,
	})
}

func (s *Server) handleAnalyzePath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResult := parseToolArguments(request)
	if errResult != nil {
		return errResult, nil
	}
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path parameter is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return errorResult(fmt.Sprintf("cannot access %s: %v", path, err))
	}

	if !info.IsDir() {
		rec, err := s.indexer.AnalyzeFile(ctx, path)
		var fault *extractor.FaultError
		if err != nil && !errors.As(err, &fault) {
			return errorResult(err.Error())
		}
		return jsonResult(rec)
	}

	result, err := s.indexer.AnalyzeDirectory(ctx, path, nil)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(result)
}

func (s *Server) handleListLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	suffixes := s.indexer.Extractor().Classifier().Suffixes()
	out := make([]languageInfo, 0, len(suffixes))
	for suffix, detected := range suffixes {
		lang, strategy := s.describe(detected)
		out = append(out, languageInfo{
			Suffix:   suffix,
			Language: string(lang),
			Detected: string(detected),
			Strategy: strategy,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Suffix < out[j].Suffix })
	return jsonResult(out)
}

// parseToolArguments validates and extracts the arguments map from a tool request.
func parseToolArguments(request mcp.CallToolRequest) (map[string]interface{}, *mcp.CallToolResult) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	argsMap, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, mcp.NewToolResultError("invalid arguments format")
	}
	return argsMap, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// errorResult builds an IsError result whose text is a JSON object with
// error and message fields.
func errorResult(message string) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"error":   true,
		"message": message,
	})
	if err != nil {
		slog.Default().Error("failed to marshal error result", "error", err)
		return mcp.NewToolResultError(message), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(payload),
			},
		},
		IsError: true,
	}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	status := s.indexer.GetStatus()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"state":     status.State,
		"languages": len(s.indexer.Extractor().Classifier().Suffixes()),
	})
}

func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcp)
}

// Handler mounts the SSE and streamable HTTP transports next to the health,
// readiness and metrics endpoints.
func (s *Server) Handler(baseURL string, srv *http.Server) http.Handler {
	mux := http.NewServeMux()

	sseHandler := server.NewSSEServer(s.mcp,
		server.WithBaseURL(baseURL),
		server.WithUseFullURLForMessageEndpoint(true),
		server.WithHTTPServer(srv),
	)
	streamable := server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/mcp"),
		server.WithStreamableHTTPServer(srv),
	)

	mux.Handle("/sse", sseHandler.SSEHandler())
	mux.Handle("/message", sseHandler.MessageHandler())
	mux.Handle("/mcp", streamable)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *Server) ServeHTTP(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("starting MCP server", "url", fmt.Sprintf("http://localhost%s", addr))

	srv := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.Handler = s.Handler(fmt.Sprintf("http://127.0.0.1:%d", port), srv)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
