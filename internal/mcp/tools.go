package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/recall-mcp/internal/service"
	"github.com/dshills/recall-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeMemoryNotFound = -32001 // No scope holds the requested memory
	ErrorCodeEmptyContent   = -32002 // Memory content is blank
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

const maxLimit = 100

// ToolKind enumerates the tools this server offers.
type ToolKind int

const (
	ToolStoreMemory ToolKind = iota
	ToolSearchMemory
	ToolSearchByTags
	ToolGetMemory
	ToolUpdateMemory
	ToolDeleteMemory
	ToolRecentMemories
	ToolListProjects
	ToolTagStats
	ToolMemoryStatus
)

var toolNames = map[ToolKind]string{
	ToolStoreMemory:    "store_memory",
	ToolSearchMemory:   "search_memory",
	ToolSearchByTags:   "search_by_tags",
	ToolGetMemory:      "get_memory",
	ToolUpdateMemory:   "update_memory",
	ToolDeleteMemory:   "delete_memory",
	ToolRecentMemories: "recent_memories",
	ToolListProjects:   "list_projects",
	ToolTagStats:       "tag_stats",
	ToolMemoryStatus:   "memory_status",
}

func (k ToolKind) String() string {
	if name, ok := toolNames[k]; ok {
		return name
	}
	return fmt.Sprintf("tool(%d)", int(k))
}

// ParseToolKind looks a tool up by its MCP name.
func ParseToolKind(name string) (ToolKind, bool) {
	for k, n := range toolNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

type toolHandler func(s *Server, ctx context.Context, args map[string]interface{}) (interface{}, error)

type toolEntry struct {
	schema func() mcp.Tool
	handle toolHandler
}

// toolOrder is the registration order.
var toolOrder = []ToolKind{
	ToolStoreMemory,
	ToolSearchMemory,
	ToolSearchByTags,
	ToolGetMemory,
	ToolUpdateMemory,
	ToolDeleteMemory,
	ToolRecentMemories,
	ToolListProjects,
	ToolTagStats,
	ToolMemoryStatus,
}

var tools = map[ToolKind]toolEntry{
	ToolStoreMemory:    {storeMemoryTool, (*Server).handleStoreMemory},
	ToolSearchMemory:   {searchMemoryTool, (*Server).handleSearchMemory},
	ToolSearchByTags:   {searchByTagsTool, (*Server).handleSearchByTags},
	ToolGetMemory:      {getMemoryTool, (*Server).handleGetMemory},
	ToolUpdateMemory:   {updateMemoryTool, (*Server).handleUpdateMemory},
	ToolDeleteMemory:   {deleteMemoryTool, (*Server).handleDeleteMemory},
	ToolRecentMemories: {recentMemoriesTool, (*Server).handleRecentMemories},
	ToolListProjects:   {listProjectsTool, (*Server).handleListProjects},
	ToolTagStats:       {tagStatsTool, (*Server).handleTagStats},
	ToolMemoryStatus:   {memoryStatusTool, (*Server).handleMemoryStatus},
}

// handler adapts a typed tool handler to mcp-go: it unpacks arguments,
// maps service errors to MCP errors and renders the result as JSON text.
func (s *Server) handler(kind ToolKind) server.ToolHandlerFunc {
	entry := tools[kind]
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			if request.Params.Arguments != nil {
				return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
			}
			args = map[string]interface{}{}
		}

		start := time.Now()
		result, err := entry.handle(s, ctx, args)
		logger := s.logger.With().Str("tool", kind.String()).Dur("duration", time.Since(start)).Logger()
		if err != nil {
			logger.Debug().Err(err).Msg("tool call failed")
			return nil, toMCPError(err)
		}
		logger.Debug().Msg("tool call")
		return mcp.NewToolResultText(formatJSON(result)), nil
	}
}

func (s *Server) handleStoreMemory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	content, err := requireString(args, "content")
	if err != nil {
		return nil, err
	}
	tags, err := getStringSlice(args, "tags")
	if err != nil {
		return nil, err
	}
	metadata, err := getObject(args, "metadata")
	if err != nil {
		return nil, err
	}

	m, err := s.svc.Remember(ctx, service.StoreRequest{
		Content:  content,
		Type:     getStringDefault(args, "type", ""),
		Tags:     tags,
		Metadata: metadata,
		Project:  getStringDefault(args, "project", ""),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"stored": true, "memory": m}, nil
}

func (s *Server) handleSearchMemory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	mode, err := service.ParseMode(getStringDefault(args, "mode", "hybrid"))
	if err != nil || mode == service.ModeTags {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"allowed": []string{"hybrid", "lexical"},
		})
	}

	req, err := searchFilters(args)
	if err != nil {
		return nil, err
	}
	req.Mode = mode
	switch match := getStringDefault(args, "match", "phrase"); match {
	case "phrase":
		req.Query = query
	case "all_terms":
		req.Terms = strings.Fields(query)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid match", map[string]interface{}{
			"param":   "match",
			"value":   match,
			"allowed": []string{"phrase", "all_terms"},
		})
	}

	return s.svc.Search(ctx, req)
}

func (s *Server) handleSearchByTags(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tags, err := getStringSlice(args, "tags")
	if err != nil {
		return nil, err
	}
	req, err := searchFilters(args)
	if err != nil {
		return nil, err
	}
	req.Mode = service.ModeTags
	req.Tags = tags
	return s.svc.Search(ctx, req)
}

func (s *Server) handleGetMemory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}
	return s.svc.Get(ctx, getStringDefault(args, "project", ""), id)
}

func (s *Server) handleUpdateMemory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}

	var req service.UpdateRequest
	if v, ok := args["content"].(string); ok {
		req.Content = &v
	}
	if v, ok := args["type"].(string); ok {
		req.Type = &v
	}
	if _, ok := args["tags"]; ok {
		tags, err := getStringSlice(args, "tags")
		if err != nil {
			return nil, err
		}
		if tags == nil {
			tags = []string{}
		}
		req.Tags = tags
	}
	if req.Metadata, err = getObject(args, "metadata"); err != nil {
		return nil, err
	}

	m, err := s.svc.Update(ctx, getStringDefault(args, "project", ""), id, req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"updated": true, "memory": m}, nil
}

func (s *Server) handleDeleteMemory(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	id, err := requireString(args, "id")
	if err != nil {
		return nil, err
	}
	if err := s.svc.Forget(ctx, getStringDefault(args, "project", ""), id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": true, "id": id}, nil
}

func (s *Server) handleRecentMemories(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	memoryTypes, err := getStringSlice(args, "types")
	if err != nil {
		return nil, err
	}
	limit, err := getLimit(args)
	if err != nil {
		return nil, err
	}

	memories, err := s.svc.Recent(ctx, service.RecentRequest{
		Project: getStringDefault(args, "project", ""),
		Types:   memoryTypes,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": len(memories), "memories": memories}, nil
}

func (s *Server) handleListProjects(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	projects, err := s.svc.ListProjects()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": len(projects), "projects": projects}, nil
}

func (s *Server) handleTagStats(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	stats, err := s.svc.TagStats(ctx, getStringDefault(args, "project", ""), getStringDefault(args, "type", ""))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": len(stats), "tags": stats}, nil
}

func (s *Server) handleMemoryStatus(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	return s.svc.Status(ctx)
}

// searchFilters parses the arguments shared by both search tools.
func searchFilters(args map[string]interface{}) (service.SearchRequest, error) {
	var req service.SearchRequest
	var err error

	req.Project = getStringDefault(args, "project", "")
	if req.Types, err = getStringSlice(args, "types"); err != nil {
		return req, err
	}
	if req.Limit, err = getLimit(args); err != nil {
		return req, err
	}
	if req.CreatedAfter, err = getTime(args, "created_after"); err != nil {
		return req, err
	}
	if req.CreatedBefore, err = getTime(args, "created_before"); err != nil {
		return req, err
	}
	return req, nil
}

// Helper functions

// toMCPError maps service errors onto MCP error codes.
func toMCPError(err error) error {
	var mcpErr *MCPError
	switch {
	case errors.As(err, &mcpErr):
		return mcpErr
	case errors.Is(err, types.ErrEmptyContent):
		return newMCPError(ErrorCodeEmptyContent, err.Error(), map[string]interface{}{"param": "content"})
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, err.Error(), map[string]interface{}{"param": "query"})
	case errors.Is(err, types.ErrNoTags):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{"param": "tags"})
	case errors.Is(err, types.ErrInvalidLimit), errors.Is(err, types.ErrInvalidDateSpan):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, service.ErrNotFound):
		return newMCPError(ErrorCodeMemoryNotFound, "memory not found", map[string]interface{}{"error": err.Error()})
	default:
		return newMCPError(ErrorCodeInternalError, "internal error", map[string]interface{}{"error": err.Error()})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || strings.TrimSpace(val) == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getLimit reads the optional limit. 0 means "use the default".
func getLimit(args map[string]interface{}) (int, error) {
	limit := getIntDefault(args, "limit", 0)
	if _, present := args["limit"]; present && (limit < 1 || limit > maxLimit) {
		return 0, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxLimit), map[string]interface{}{
			"param": "limit",
			"value": args["limit"],
		})
	}
	return limit, nil
}

// getStringSlice accepts a JSON array of strings or a comma separated
// string. A missing key yields nil.
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	switch val := args[key].(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, newMCPError(ErrorCodeInvalidParams, key+" must be a list of strings", map[string]interface{}{"param": key})
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, key+" must be a list of strings", map[string]interface{}{"param": key})
	}
}

func getObject(args map[string]interface{}, key string) (map[string]interface{}, error) {
	switch val := args[key].(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return val, nil
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, key+" must be an object", map[string]interface{}{"param": key})
	}
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func getTime(args map[string]interface{}, key string) (*time.Time, error) {
	raw, ok := args[key].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return &t, nil
		}
	}
	return nil, newMCPError(ErrorCodeInvalidParams, "invalid "+key, map[string]interface{}{
		"param":  key,
		"value":  raw,
		"reason": "expected RFC 3339 or YYYY-MM-DD",
	})
}
