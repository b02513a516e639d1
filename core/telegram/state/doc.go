// Package state keeps per-chat conversation state in memory.
// It knows nothing about the steps it stores; callers pick the record type.
package state
