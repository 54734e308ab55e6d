// Package types provides shared value objects for the recall memory server.
//
// These types cross package boundaries: storage returns them, the registry
// fans them out, the ranking engine scores them and the MCP layer serializes
// them.
//
// # Core Types
//
// Memory is a single stored item. It belongs to exactly one scope, either a
// named project or the global scope (Project == nil):
//
//	mem := &types.Memory{
//	    Content: "use errgroup for fan-out",
//	    Type:    "decision",
//	    Tags:    []string{"go", "concurrency"},
//	}
//
// SearchCriteria is immutable. Re-scoping returns a copy:
//
//	c, err := types.NewSearchCriteria(types.PhraseQuery("retry policy"), types.WithLimit(5))
//	scoped := c.WithProject(&name)
//
// # Project Keys
//
// FoldProjectKey maps a raw project name to its canonical key. "My-Project",
// "my_project" and "MY PROJECT" all fold to "my_project".
package types
