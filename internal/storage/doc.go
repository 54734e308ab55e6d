// Package storage provides SQLite-based persistence for memories.
//
// Each scope, the global scope or one project, lives in its own database
// file. A store manages:
//   - Memories (content, type, metadata, timestamps)
//   - Lowercased tags, for AND tag search and frequency statistics
//   - An FTS5 index over content, kept in sync by triggers
//   - At most one embedding vector per memory
//
// # Database Schema
//
// Tables:
//   - memories: one row per memory; seq is the FTS rowid, id is a ULID
//   - memory_tags: (memory_id, tag) pairs
//   - memories_fts: FTS5 external-content index on memories.content
//   - memory_embeddings: little-endian float32 vectors keyed by memory id
//   - schema_version: applied migrations, ordered by semantic version
//
// # Basic Usage
//
//	project := "recall"
//	store, err := storage.Open("~/.recall/projects/recall.db", &project)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	mem, err := store.Add(ctx, storage.NewMemory{
//	    Content: "hybrid search weights lexical 0.6, vector 0.4",
//	    Type:    "decision",
//	    Tags:    []string{"Search"},
//	})
//
//	results, err := store.Search(ctx, storage.LexicalQuery{
//	    Query: types.PhraseQuery("hybrid search"),
//	    Limit: 10,
//	})
//
// # Build Modes
//
// The default build uses modernc.org/sqlite and computes cosine distances
// in Go. Building with -tags sqlite_vec switches to mattn/go-sqlite3 with
// the sqlite-vec extension and computes distances in SQL.
package storage
