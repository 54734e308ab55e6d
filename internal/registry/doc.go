// Package registry owns the per-scope memory stores.
//
// Each canonical project key, and the global scope, maps to exactly one
// open Store for the life of the process. Stores are opened lazily on first
// use. The registry also fans searches out across every scope and fuses
// lexical and vector results for hybrid search.
package registry
