// Package memory provides mutex-guarded in-memory implementations of the
// repository contracts. Stores hand out copies of their records so callers
// can never mutate shared state outside a repository call.
package memory
