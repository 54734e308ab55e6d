// Package ranking fuses lexical and vector results and applies recency decay.
//
// All functions are pure: they never mutate their inputs and hold no state.
//
// Merge normalizes both lists to 0..1 (1.0 best), unions them by memory id
// and scores each candidate as 0.6*lexical + 0.4*vector. ApplyRecency
// multiplies a score by
//
//	(1 - a) + a * exp(-ln2 * ageDays / halfLifeDays)
//
// and re-sorts. An aging factor of 0 disables decay entirely and returns
// the input as is, without a recency factor.
package ranking
