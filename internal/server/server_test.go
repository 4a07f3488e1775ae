package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/ironsheep/slide-tools-mcp/internal/config"
	"github.com/ironsheep/slide-tools-mcp/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(nil, logging.Discard())
	t.Cleanup(s.Close)
	return s
}

func TestNew(t *testing.T) {
	s := New(nil, nil)
	defer s.Close()
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
	if s.cfg == nil || s.cfg.Engine.DefaultDriver != "AUTO" {
		t.Errorf("New(nil) should use the default config, got %+v", s.cfg)
	}
	if s.cache.Len() != 0 {
		t.Errorf("new cache holds %d slides", s.cache.Len())
	}
}

func TestNew_CustomConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.DefaultDriver = "GDAL"
	s := New(cfg, logging.Discard())
	defer s.Close()

	if s.cfg.Engine.DefaultDriver != "GDAL" {
		t.Errorf("DefaultDriver: got %s, want GDAL", s.cfg.Engine.DefaultDriver)
	}
}

func TestMCPRequest_IDs(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{"string id", `{"jsonrpc":"2.0","id":"req-1","method":"tools/list"}`, "req-1", "tools/list"},
		{"number id", `{"jsonrpc":"2.0","id":42,"method":"ping"}`, float64(42), "ping"},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, nil, "notifications/initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID || req.Method != tt.wantMethod {
				t.Errorf("got id %v (%T) method %s", req.ID, req.ID, req.Method)
			}
		})
	}
}

func TestMCPResponse_Wire(t *testing.T) {
	tests := []struct {
		name     string
		resp     *MCPResponse
		want     []string
		unwanted []string
	}{
		{
			"result",
			resultResponse(1, map[string]interface{}{}),
			[]string{`"jsonrpc":"2.0"`, `"id":1`, `"result":{}`},
			[]string{`"error"`},
		},
		{
			"error with data",
			errorResponse("a", codeToolFailed, "Tool execution failed", "no such file"),
			[]string{`"id":"a"`, `"code":-32000`, `"data":"no such file"`},
			[]string{`"result"`},
		},
		{
			"error without data",
			errorResponse(2, codeMethodNotFound, "Method not found: x", ""),
			[]string{`"code":-32601`},
			[]string{`"data"`, `"result"`},
		},
		{
			"parse error keeps a null id",
			errorResponse(nil, codeParseError, "Parse error", "bad"),
			[]string{`"id":null`, `"code":-32700`},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(string(data), w) {
					t.Errorf("%s missing %s", data, w)
				}
			}
			for _, u := range tt.unwanted {
				if strings.Contains(string(data), u) {
					t.Errorf("%s should not contain %s", data, u)
				}
			}
		})
	}
}

func TestHandleRequest(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		req      MCPRequest
		wantNil  bool
		wantCode int
	}{
		{"initialize", MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"}, false, 0},
		{"ping", MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"}, false, 0},
		{"tools list", MCPRequest{JSONRPC: "2.0", ID: 2, Method: "tools/list"}, false, 0},
		{"initialized notification", MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"}, true, 0},
		{"cancelled notification", MCPRequest{JSONRPC: "2.0", Method: "notifications/cancelled"}, true, 0},
		{"unknown method", MCPRequest{JSONRPC: "2.0", ID: 3, Method: "resources/list"}, false, -32601},
		{"tools call without params", MCPRequest{JSONRPC: "2.0", ID: 4, Method: "tools/call"}, false, -32602},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.handleRequest(&tt.req)
			if tt.wantNil {
				if resp != nil {
					t.Errorf("notification got a response: %+v", resp)
				}
				return
			}
			if resp == nil {
				t.Fatal("handleRequest returned nil")
			}
			if resp.ID != tt.req.ID || resp.JSONRPC != "2.0" {
				t.Errorf("envelope: %+v", resp)
			}
			switch {
			case tt.wantCode == 0 && resp.Error != nil:
				t.Errorf("Unexpected error: %+v", resp.Error)
			case tt.wantCode != 0 && (resp.Error == nil || resp.Error.Code != tt.wantCode):
				t.Errorf("Error: got %+v, want code %d", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestHandleSetLevel(t *testing.T) {
	s := newTestServer(t)
	t.Cleanup(func() { logging.SetLogLevel("info") })

	tests := []struct {
		params   string
		want     slog.Level
		wantCode int
	}{
		{`{"level":"debug"}`, slog.LevelDebug, 0},
		{`{"level":"warning"}`, slog.LevelWarn, 0},
		{`{"level":"critical"}`, slog.LevelError, 0},
		{`{"level":"notice"}`, slog.LevelInfo, 0},
		{`{}`, slog.LevelInfo, -32602},
	}

	for _, tt := range tests {
		t.Run(tt.params, func(t *testing.T) {
			resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "logging/setLevel", Params: json.RawMessage(tt.params)})
			if tt.wantCode != 0 {
				if resp.Error == nil || resp.Error.Code != tt.wantCode {
					t.Errorf("Error: got %+v, want code %d", resp.Error, tt.wantCode)
				}
				return
			}
			if resp.Error != nil {
				t.Fatalf("Unexpected error: %+v", resp.Error)
			}
			if logging.Level() != tt.want {
				t.Errorf("level: got %v, want %v", logging.Level(), tt.want)
			}
		})
	}
}

func TestHandleInitialize(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleInitialize(&MCPRequest{JSONRPC: "2.0", ID: "init-1"})

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}
	if serverInfo["name"] != "slide-tools-mcp" || serverInfo["version"] != Version {
		t.Errorf("serverInfo: %v", serverInfo)
	}
}

func TestServe(t *testing.T) {
	s := newTestServer(t)
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"slide_drivers"}}`,
		`not json`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n")

	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var responses []MCPResponse
	dec := json.NewDecoder(&out)
	for dec.More() {
		var resp MCPResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		responses = append(responses, resp)
	}

	// the notification and the blank line get no response
	if len(responses) != 4 {
		t.Fatalf("got %d responses, want 4", len(responses))
	}
	if responses[0].ID != float64(1) || responses[0].Error != nil {
		t.Errorf("initialize response: %+v", responses[0])
	}
	if responses[1].ID != float64(2) || responses[1].Error != nil {
		t.Errorf("tools/call response: %+v", responses[1])
	}
	if responses[2].ID != nil || responses[2].Error == nil || responses[2].Error.Code != -32700 {
		t.Errorf("parse error response: %+v", responses[2])
	}
	if responses[3].ID != float64(3) || responses[3].Error != nil {
		t.Errorf("ping response: %+v", responses[3])
	}
}

func TestServe_LineTooLong(t *testing.T) {
	s := newTestServer(t)
	in := `{"jsonrpc":"2.0","id":1,"method":"ping","params":"` + strings.Repeat("x", maxLineSize) + `"}`
	var out bytes.Buffer
	if err := s.Serve(strings.NewReader(in), &out); err == nil {
		t.Error("expected an error for an oversized request line")
	}
}
