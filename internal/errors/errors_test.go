package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestIndexingError(t *testing.T) {
	underlying := errors.New("underlying error")
	err := NewIndexingError("rebuild", underlying).
		WithFile("/project/Assets/a.prefab").
		WithRecoverable(true)

	if err.Type != ErrorTypeIndexing {
		t.Errorf("Expected Type to be ErrorTypeIndexing, got %v", err.Type)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	if !err.IsRecoverable() {
		t.Errorf("Expected error to be marked as recoverable")
	}

	expectedMsg := "indexing rebuild failed for /project/Assets/a.prefab: underlying error"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	plain := NewIndexingError("enumerate", underlying)
	if plain.Error() != "indexing enumerate failed: underlying error" {
		t.Errorf("Unexpected message %q", plain.Error())
	}
}

func TestFileErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not exist", fs.ErrNotExist, ErrorTypeFileNotFound},
		{"wrapped not exist", fmt.Errorf("open: %w", fs.ErrNotExist), ErrorTypeFileNotFound},
		{"permission", fs.ErrPermission, ErrorTypePermission},
		{"other", errors.New("disk on fire"), ErrorTypeIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFileError("read", "/p/a.prefab", tt.err)
			if err.Type != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err.Type)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected FileError to unwrap to %v", tt.err)
			}
		})
	}
}

func TestCompanionError(t *testing.T) {
	missing := NewCompanionMissingError("/p/Foo.cs", "/p/Foo.cs.meta", fs.ErrNotExist)
	if !errors.Is(missing, ErrCompanionMissing) {
		t.Error("Expected missing error to match ErrCompanionMissing")
	}
	if errors.Is(missing, ErrCompanionMalformed) {
		t.Error("Missing error must not match ErrCompanionMalformed")
	}
	if !errors.Is(missing, fs.ErrNotExist) {
		t.Error("Expected missing error to expose the underlying error")
	}

	malformed := NewCompanionMalformedError("/p/Foo.cs", "/p/Foo.cs.meta", "XYZ")
	if !errors.Is(malformed, ErrCompanionMalformed) {
		t.Error("Expected malformed error to match ErrCompanionMalformed")
	}
	if errors.Is(malformed, ErrCompanionMissing) {
		t.Error("Malformed error must not match ErrCompanionMissing")
	}

	var ce *CompanionError
	if !errors.As(fmt.Errorf("resolve: %w", malformed), &ce) {
		t.Fatal("Expected errors.As to find CompanionError")
	}
	if ce.Value != "XYZ" {
		t.Errorf("Expected value XYZ, got %q", ce.Value)
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("must be positive")
	err := NewConfigError("index.workers", "-1", underlying)

	if !errors.Is(err, underlying) {
		t.Error("Expected ConfigError to unwrap")
	}
	expected := "config error for field index.workers (value -1): must be positive"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestMultiError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	multi := NewMultiError([]error{err1, nil, err2})
	if len(multi.Errors) != 2 {
		t.Fatalf("Expected nil errors to be filtered, got %d", len(multi.Errors))
	}
	if !errors.Is(multi, err2) {
		t.Error("Expected MultiError to unwrap to each member")
	}

	empty := NewMultiError(nil)
	if empty.ErrorOrNil() != nil {
		t.Error("Expected ErrorOrNil to be nil for an empty MultiError")
	}
	if empty.Error() != "no errors" {
		t.Errorf("Unexpected message %q", empty.Error())
	}

	single := NewMultiError([]error{err1})
	if single.Error() != "error 1" {
		t.Errorf("Unexpected message %q", single.Error())
	}
}
