package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ironsheep/slide-tools-mcp/internal/config"
	"github.com/ironsheep/slide-tools-mcp/internal/drivers"
	"github.com/ironsheep/slide-tools-mcp/internal/imaging"
	"github.com/ironsheep/slide-tools-mcp/internal/logging"
)

// Version is reported in the initialize handshake. main overrides it from
// build flags.
var Version = "0.1.0"

const (
	jsonRPCVersion  = "2.0"
	protocolVersion = "2024-11-05"
	serverName      = "slide-tools-mcp"

	// maxLineSize bounds a single request line.
	maxLineSize = 1 << 20
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// Server answers MCP requests against a cache of open slides.
type Server struct {
	cache  *imaging.SlideCache
	cfg    *config.Config
	logger *slog.Logger
}

// MCPRequest is one JSON-RPC request or notification. Notifications carry
// no ID.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse carries either Result or Error.
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a new MCP server instance. A nil cfg selects the defaults and
// a nil logger the slog default.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	registry := drivers.Default(logger, cfg.SlideOptions()...)
	return &Server{
		cache:  imaging.NewSlideCache(registry, cfg.Cache.MaxSlides),
		cfg:    cfg,
		logger: logger,
	}
}

// Close releases every slide the server keeps open.
func (s *Server) Close() {
	s.cache.Clear()
}

// Run serves stdin/stdout until stdin closes.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from in and writes responses to
// out until in is exhausted. Blank lines are skipped and malformed lines get
// a parse error response. Open slides are released on return.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	defer s.Close()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp *MCPResponse
		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", "error", err)
			resp = errorResponse(nil, codeParseError, "Parse error", err.Error())
		} else {
			resp = s.handleRequest(&req)
		}
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			s.logger.Error("failed to encode response", "id", resp.ID, "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// handleRequest routes one request. Notifications return nil.
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.logger.Debug("mcp request", "method", req.Method, "id", req.ID)
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "logging/setLevel":
		return s.handleSetLevel(req)
	case "ping":
		return resultResponse(req.ID, map[string]interface{}{})
	}
	return errorResponse(req.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), "")
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return resultResponse(req.ID, map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]interface{}{
			"tools":   map[string]interface{}{},
			"logging": map[string]interface{}{},
		},
		"serverInfo": map[string]interface{}{
			"name":    serverName,
			"version": Version,
		},
	})
}

// handleSetLevel changes the server's log level at runtime. MCP levels
// without a slog counterpart map to the nearest one.
func (s *Server) handleSetLevel(req *MCPRequest) *MCPResponse {
	var params struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Level == "" {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params", "level is required")
	}
	lvl := params.Level
	switch lvl {
	case "notice":
		lvl = "info"
	case "warning":
		lvl = "warn"
	case "critical", "alert", "emergency":
		lvl = "error"
	}
	logging.SetLogLevel(lvl)
	s.logger.Info("log level changed", "level", params.Level)
	return resultResponse(req.ID, map[string]interface{}{})
}

func resultResponse(id, result interface{}) *MCPResponse {
	return &MCPResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
}

// errorResponse builds an error response. An empty data string is omitted.
func errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{JSONRPC: jsonRPCVersion, ID: id, Error: e}
}
