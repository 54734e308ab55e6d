// Package mcp implements the Model Context Protocol (MCP) server for recall.
//
// The server gives AI coding assistants a persistent memory that survives
// across sessions. Memories live either in the global scope or in a named
// project; searches without a project cover every scope.
//
// Tools:
//   - store_memory: save content with a type, tags and optional metadata
//   - search_memory: hybrid (keyword + semantic) or keyword-only search
//   - search_by_tags: memories carrying all of the given tags, newest first
//   - get_memory, update_memory, delete_memory: work on one memory by id
//   - recent_memories: newest memories, optionally per project
//   - list_projects: every project with a store on disk
//   - tag_stats: tag frequencies, most used first
//   - memory_status: per-scope counts and embedding worker health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Every tool result is a single text item holding indented JSON.
//
// # Tool: store_memory
//
//	Request:
//	{
//	  "name": "store_memory",
//	  "arguments": {
//	    "content": "Integration tests need RECALL_DATA_DIR pointed at a temp dir",
//	    "type": "convention",
//	    "tags": ["testing", "ci"],
//	    "project": "recall-mcp"
//	  }
//	}
//
//	Response:
//	{
//	  "stored": true,
//	  "memory": {
//	    "id": "01J9Z3M6Q0D8V4K2T7W5X1Y3B6",
//	    "type": "convention",
//	    "tags": ["ci", "testing"],
//	    "project": "recall_mcp",
//	    ...
//	  }
//	}
//
// Project names are folded to a canonical key: lowercase, with anything
// outside [a-z0-9_] replaced by an underscore. "Recall-MCP" and
// "recall mcp" name the same project.
//
// # Tool: search_memory
//
//	Request:
//	{
//	  "name": "search_memory",
//	  "arguments": {
//	    "query": "temp dir for tests",
//	    "mode": "hybrid",
//	    "limit": 5
//	  }
//	}
//
// Hybrid results carry lexical_score, vector_score and combined_score, and
// a recency_factor when time decay is configured. When the embedding
// worker is unavailable hybrid search quietly falls back to keywords.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors:
//
//	{
//	  "error": {
//	    "code": -32602,
//	    "message": "id parameter is required",
//	    "data": {"param": "id", "reason": "missing or empty"}
//	  }
//	}
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, etc.)
//   - -32001: Memory not found
//   - -32002: Memory content is blank
//   - -32004: Query is empty
//
// # Logging
//
// The server logs to stderr; stdout is reserved for the protocol.
package mcp
