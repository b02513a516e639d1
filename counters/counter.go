// Package counters persists named integer counters, partitioned by chat.
package counters

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest counter name accepted, in runes.
const MaxNameLength = 100

// Counter is a named integer value owned by one chat.
type Counter struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Value int64  `db:"count"`
}

// ErrNotFound is returned when a counter id does not exist in the chat's partition.
var ErrNotFound = errors.New("counter not found")

// ValidationError reports malformed user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Code is used by the router summary as err_code.
func (e *ValidationError) Code() string { return "VALIDATION" }

// PersistenceError wraps a failed database call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("counters %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code is used by the router summary as err_code.
func (e *PersistenceError) Code() string { return "PERSISTENCE" }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NormalizeName collapses runs of whitespace, line breaks included, into one
// space and checks the result is non-empty and not too long.
func NormalizeName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", &ValidationError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	return name, nil
}

// ParseValue parses a base-10 integer from trimmed text. Anything else,
// including trailing garbage such as "12abc", is a ValidationError.
func ParseValue(text string) (int64, error) {
	text = strings.TrimSpace(text)
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, &ValidationError{Field: "value", Reason: "out of range"}
		}
		return 0, &ValidationError{Field: "value", Reason: "not a whole number"}
	}
	return v, nil
}
