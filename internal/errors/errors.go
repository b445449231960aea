// Package errors classifies failures so commands can tell bad input apart
// from archives that could not be read or written.
package errors

import "errors"

type Category string

const (
	CategoryInvalidInput    Category = "invalid_input"
	CategoryInvalidConfig   Category = "invalid_config"
	CategoryArchiveRead     Category = "archive_read"
	CategoryArchiveWrite    Category = "archive_write"
	CategoryInternalFailure Category = "internal_failure"
)

const (
	CodeUsage          = "usage_invalid"
	CodeConfig         = "config_invalid"
	CodeArchiveOpen    = "archive_open_failed"
	CodeEntryRead      = "archive_entry_read_failed"
	CodeMaterialize    = "archive_materialize_failed"
	CodeScratchPrepare = "scratch_prepare_failed"
	CodeOutput         = "output_write_failed"
)

type classifiedError struct {
	category Category
	code     string
	hint     string
	cause    error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Category() Category {
	return e.category
}

func (e *classifiedError) Code() string {
	return e.code
}

func (e *classifiedError) Hint() string {
	return e.hint
}

// Wrap classifies cause. A nil cause stays nil so callers can wrap unconditionally.
func Wrap(cause error, category Category, code, hint string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category: category,
		code:     code,
		hint:     hint,
		cause:    cause,
	}
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

// IsFatal reports whether err aborts a comparison run rather than describing bad input.
func IsFatal(err error) bool {
	switch CategoryOf(err) {
	case CategoryInvalidInput, CategoryInvalidConfig:
		return false
	}
	return err != nil
}
