package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the script reference index
type ErrorType string

const (
	// Indexing errors
	ErrorTypeIndexing ErrorType = "indexing"
	ErrorTypeQuery    ErrorType = "query"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeIO           ErrorType = "io"

	// Companion file errors
	ErrorTypeCompanion ErrorType = "companion"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

var (
	// ErrNotReady is returned by queries while the index is empty or populating.
	// It is a "try again" signal, never a statement that nothing references the identifier.
	ErrNotReady = errors.New("index is not ready")

	// ErrRebuildSuperseded is returned by a rebuild that a newer rebuild replaced
	ErrRebuildSuperseded = errors.New("rebuild superseded by a newer rebuild")

	// ErrCompanionMissing means the sibling .meta file does not exist or cannot be read
	ErrCompanionMissing = errors.New("companion metadata file not found")

	// ErrCompanionMalformed means the .meta file exists but holds no well-formed guid line
	ErrCompanionMalformed = errors.New("companion metadata file has no valid guid")

	// ErrUnsupportedSource means the source file kind cannot have script references
	ErrUnsupportedSource = errors.New("unsupported source file")
)

// IndexingError represents an error during a rebuild or an incremental update
type IndexingError struct {
	Type        ErrorType
	FilePath    string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewIndexingError creates a new indexing error with context
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:       ErrorTypeIndexing,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithFile adds file information to the error
func (e *IndexingError) WithFile(path string) *IndexingError {
	e.FilePath = path
	return e
}

// WithRecoverable marks the error as recoverable
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *IndexingError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Type, e.Operation, e.FilePath, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *IndexingError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the error can be retried
func (e *IndexingError) IsRecoverable() bool {
	return e.Recoverable
}

// FileError represents a failure to read a document or companion file
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error, classifying the underlying failure
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Type:       classifyFileError(err),
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func classifyFileError(err error) ErrorType {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrorTypeFileNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrorTypePermission
	default:
		return ErrorTypeIO
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// CompanionError reports a companion metadata resolution failure. Kind is either
// ErrCompanionMissing or ErrCompanionMalformed so callers can pick the corrective action.
type CompanionError struct {
	Kind       error
	SourcePath string
	MetaPath   string
	// Value is the ill-formed guid value when one was seen
	Value      string
	Underlying error
}

// NewCompanionMissingError reports that metaPath could not be opened
func NewCompanionMissingError(sourcePath, metaPath string, err error) *CompanionError {
	return &CompanionError{
		Kind:       ErrCompanionMissing,
		SourcePath: sourcePath,
		MetaPath:   metaPath,
		Underlying: err,
	}
}

// NewCompanionMalformedError reports that metaPath has no valid guid line
func NewCompanionMalformedError(sourcePath, metaPath, value string) *CompanionError {
	return &CompanionError{
		Kind:       ErrCompanionMalformed,
		SourcePath: sourcePath,
		MetaPath:   metaPath,
		Value:      value,
	}
}

// Error implements the error interface
func (e *CompanionError) Error() string {
	switch {
	case e.Value != "":
		return fmt.Sprintf("%v: %s (guid %q)", e.Kind, e.MetaPath, e.Value)
	case e.Underlying != nil:
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.MetaPath, e.Underlying)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.MetaPath)
	}
}

// Unwrap exposes both the kind sentinel and the underlying failure
func (e *CompanionError) Unwrap() []error {
	if e.Underlying != nil {
		return []error{e.Kind, e.Underlying}
	}
	return []error{e.Kind}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
