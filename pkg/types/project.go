package types

import "strings"

// GlobalKey is the registry key of the global scope. It contains a
// character that FoldProjectKey never emits, so no project can collide
// with it.
const GlobalKey = "@global"

// FoldProjectKey folds a raw project name to its canonical key: lowercase,
// with every character outside [a-z0-9_] replaced by '_'.
func FoldProjectKey(raw string) string {
	lower := strings.ToLower(raw)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ScopeKey returns the registry key for an optional project name. A nil or
// empty project selects the global scope.
func ScopeKey(project *string) string {
	if project == nil || *project == "" {
		return GlobalKey
	}
	return FoldProjectKey(*project)
}

// ProjectRef returns a pointer to the canonical key, or nil for the global
// scope.
func ProjectRef(key string) *string {
	if key == "" || key == GlobalKey {
		return nil
	}
	k := key
	return &k
}
