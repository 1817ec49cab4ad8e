package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mastidea/mastidea-server/internal/adapter/store"
	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/service"
)

// expander generates one expansion of the given type.
type expander interface {
	Generate(ctx context.Context, typ, title, content string, previous []string) (string, error)
}

// summarizer produces an executive summary over an idea and its expansions.
type summarizer interface {
	GenerateSummary(ctx context.Context, title, content string, expansions []string) (string, error)
}

// Server implements the Model Context Protocol (MCP) server. It exposes
// MastIdea's similarity search and expansion engine to external AI
// agents. MCP is a trusted local surface: it bypasses per-user access
// checks, so it must only be bound to loopback or a protected network.
type Server struct {
	search  *service.SearchService
	engine  expander
	summary summarizer
	store   *store.PostgresStore
	port    string
}

// NewServer creates a new MCP server.
func NewServer(search *service.SearchService, engine expander, summary summarizer, st *store.PostgresStore, port string) *Server {
	return &Server{search: search, engine: engine, summary: summary, store: st, port: port}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)
	mux.HandleFunc("/mcp/sse", s.handleSSE)

	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, mux)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "mastidea",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: endpoint\ndata: /mcp\n\n")
	w.(http.Flusher).Flush()

	<-r.Context().Done()
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "find_similar_ideas",
			Description: "Find ideas semantically similar to a free-text query",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Text to search for"},
					"limit": {"type": "integer", "description": "Maximum number of results (default 5)"}
				},
				"required": ["query"]
			}`),
		},
		{
			Name:        "expand_idea",
			Description: "Generate an AI expansion for an idea: suggestion, question, connection, use_case or challenge",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"idea_id": {"type": "string", "description": "Idea ID"},
					"type": {"type": "string", "description": "Expansion type: SUGGESTION, QUESTION, CONNECTION, USE_CASE, CHALLENGE"}
				},
				"required": ["idea_id", "type"]
			}`),
		},
		{
			Name:        "summarize_idea",
			Description: "Write an executive summary of an idea and everything explored so far",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"idea_id": {"type": "string", "description": "Idea ID"}
				},
				"required": ["idea_id"]
			}`),
		},
		{
			Name:        "get_idea",
			Description: "Fetch an idea with its expansions and tags",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"idea_id": {"type": "string", "description": "Idea ID"}
				},
				"required": ["idea_id"]
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	switch req.Name {
	case "find_similar_ideas":
		var args struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		json.Unmarshal(req.Arguments, &args)
		if args.Limit <= 0 {
			args.Limit = 5
		}

		matches := s.search.FindSimilar(ctx, args.Query, args.Limit, "")
		text, _ := json.MarshalIndent(matches, "", "  ")
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": string(text)},
			},
		}, nil

	case "expand_idea":
		var args struct {
			IdeaID string `json:"idea_id"`
			Type   string `json:"type"`
		}
		json.Unmarshal(req.Arguments, &args)
		if !domain.ValidExpandableType(args.Type) {
			return nil, fmt.Errorf("unknown expansion type: %s", args.Type)
		}

		idea, err := s.store.GetIdeaByID(ctx, args.IdeaID)
		if err != nil {
			return nil, err
		}
		expansion, err := s.engine.Generate(ctx, args.Type, idea.Title, idea.Content, nil)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": expansion},
			},
		}, nil

	case "summarize_idea":
		var args struct {
			IdeaID string `json:"idea_id"`
		}
		json.Unmarshal(req.Arguments, &args)

		idea, err := s.store.GetIdeaByID(ctx, args.IdeaID)
		if err != nil {
			return nil, err
		}
		expansions, err := s.store.ListExpansions(ctx, idea.ID)
		if err != nil {
			return nil, err
		}
		previous := make([]string, 0, len(expansions))
		for _, e := range expansions {
			previous = append(previous, e.Content)
		}
		text, err := s.summary.GenerateSummary(ctx, idea.Title, idea.Content, previous)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
		}, nil

	case "get_idea":
		var args struct {
			IdeaID string `json:"idea_id"`
		}
		json.Unmarshal(req.Arguments, &args)

		idea, err := s.store.GetIdeaByID(ctx, args.IdeaID)
		if err != nil {
			return nil, err
		}
		if idea.Expansions, err = s.store.ListExpansions(ctx, idea.ID); err != nil {
			return nil, err
		}
		if idea.Tags, err = s.store.ListTagsForIdea(ctx, idea.ID); err != nil {
			return nil, err
		}
		text, _ := json.MarshalIndent(idea, "", "  ")
		return map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": string(text)},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
