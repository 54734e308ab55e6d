package types

import (
	"sort"
	"strings"
	"time"
)

// Memory is a single stored item in one scope.
type Memory struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Type      string         `json:"type"`
	Tags      []string       `json:"tags"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Project   *string        `json:"project"` // nil for the global scope
}

// DefaultMemoryType is used when a write does not name a type.
const DefaultMemoryType = "note"

// ProjectKey returns the canonical scope key of the memory.
func (m *Memory) ProjectKey() string {
	return ScopeKey(m.Project)
}

// NormalizeTags lowercases, trims and deduplicates tags. Empty tags are
// dropped. The result is sorted.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ValidateContent rejects blank memory content.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// EmbeddingJob asks the embedding pipeline to vectorize one memory.
// Jobs live only in memory; lost jobs are recovered by the backlog scan.
type EmbeddingJob struct {
	MemoryID string
	Content  string
	Project  *string
}

// JobFor builds the embedding job for a stored memory.
func JobFor(m *Memory) EmbeddingJob {
	return EmbeddingJob{MemoryID: m.ID, Content: m.Content, Project: m.Project}
}
