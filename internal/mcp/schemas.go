package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func projectProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func typesProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "Only return memories of these types (e.g. note, decision, convention)",
		"items":       map[string]interface{}{"type": "string"},
	}
}

func limitProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": "Maximum number of results to return (1-100)",
		"default":     10,
		"minimum":     1,
		"maximum":     maxLimit,
	}
}

func dateProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description + " (RFC 3339 timestamp or YYYY-MM-DD)",
	}
}

func tagsProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "string"},
	}
}

func idProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Memory id as returned by store_memory or a search",
	}
}

// storeMemoryTool returns the tool definition for store_memory
func storeMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolStoreMemory.String(),
		Description: "Save a piece of knowledge (a decision, convention, fact or note) so it can be recalled in later sessions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"content": map[string]interface{}{
					"type":        "string",
					"description": "The text to remember",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Memory type, e.g. note, decision, convention, bug",
					"default":     "note",
				},
				"tags":     tagsProperty("Labels used by search_by_tags; stored lowercased"),
				"metadata": map[string]interface{}{"type": "object", "description": "Arbitrary JSON attached to the memory"},
				"project":  projectProperty("Project the memory belongs to; omit for a global memory"),
			},
			Required: []string{"content"},
		},
	}
}

// searchMemoryTool returns the tool definition for search_memory
func searchMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearchMemory.String(),
		Description: "Search stored memories by meaning and keywords across the global scope and every project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search text",
				},
				"match": map[string]interface{}{
					"type":        "string",
					"description": "phrase matches the query as one phrase; all_terms requires every word to appear",
					"enum":        []string{"phrase", "all_terms"},
					"default":     "phrase",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "hybrid fuses keyword and semantic results; lexical uses keywords only",
					"enum":        []string{"hybrid", "lexical"},
					"default":     "hybrid",
				},
				"project":        projectProperty("Restrict the search to one project"),
				"types":          typesProperty(),
				"limit":          limitProperty(),
				"created_after":  dateProperty("Only memories created at or after this time"),
				"created_before": dateProperty("Only memories created at or before this time"),
			},
			Required: []string{"query"},
		},
	}
}

// searchByTagsTool returns the tool definition for search_by_tags
func searchByTagsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearchByTags.String(),
		Description: "Find memories carrying all of the given tags, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"tags":           tagsProperty("Every tag must be present on a result"),
				"project":        projectProperty("Restrict the search to one project"),
				"types":          typesProperty(),
				"limit":          limitProperty(),
				"created_after":  dateProperty("Only memories created at or after this time"),
				"created_before": dateProperty("Only memories created at or before this time"),
			},
			Required: []string{"tags"},
		},
	}
}

// getMemoryTool returns the tool definition for get_memory
func getMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetMemory.String(),
		Description: "Fetch one memory by id",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id":      idProperty(),
				"project": projectProperty("Project holding the memory; omit to look everywhere"),
			},
			Required: []string{"id"},
		},
	}
}

// updateMemoryTool returns the tool definition for update_memory
func updateMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolUpdateMemory.String(),
		Description: "Change the content, type, tags or metadata of a memory. Omitted fields are kept",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id":       idProperty(),
				"project":  projectProperty("Project holding the memory; omit to look everywhere"),
				"content":  map[string]interface{}{"type": "string", "description": "Replacement text"},
				"type":     map[string]interface{}{"type": "string", "description": "Replacement type"},
				"tags":     tagsProperty("Replacement tags; an empty list clears them"),
				"metadata": map[string]interface{}{"type": "object", "description": "Replacement metadata"},
			},
			Required: []string{"id"},
		},
	}
}

// deleteMemoryTool returns the tool definition for delete_memory
func deleteMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolDeleteMemory.String(),
		Description: "Permanently delete a memory",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id":      idProperty(),
				"project": projectProperty("Project holding the memory; omit to look everywhere"),
			},
			Required: []string{"id"},
		},
	}
}

// recentMemoriesTool returns the tool definition for recent_memories
func recentMemoriesTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolRecentMemories.String(),
		Description: "List the most recently stored memories",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project": projectProperty("Restrict the listing to one project"),
				"types":   typesProperty(),
				"limit":   limitProperty(),
			},
		},
	}
}

// listProjectsTool returns the tool definition for list_projects
func listProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolListProjects.String(),
		Description: "List every project that has stored memories",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// tagStatsTool returns the tool definition for tag_stats
func tagStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolTagStats.String(),
		Description: "Count how often each tag is used, most frequent first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project": projectProperty("Restrict the counts to one project"),
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Only count tags on memories of this type",
				},
			},
		},
	}
}

// memoryStatusTool returns the tool definition for memory_status
func memoryStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolMemoryStatus.String(),
		Description: "Report memory and embedding counts per scope and the state of the embedding worker",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
