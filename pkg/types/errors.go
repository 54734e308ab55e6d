package types

import "errors"

// Domain errors for value validation
var (
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrInvalidLimit    = errors.New("limit must be > 0")
	ErrInvalidDateSpan = errors.New("created_after must not be later than created_before")
	ErrNoTags          = errors.New("at least one tag is required")
)
