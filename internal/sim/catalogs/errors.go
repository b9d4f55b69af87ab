package catalogs

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every *LookupError.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is wrapped by a *ConfigurationError when two entries of one
// catalog share an id.
var ErrDuplicateID = errors.New("duplicate id")

// ConfigurationError reports a catalog file that cannot be loaded. It is
// fatal at startup.
type ConfigurationError struct {
	File string
	Err  error
}

func (e *ConfigurationError) Error() string { return e.File + ": " + e.Err.Error() }

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(file string, format string, args ...any) error {
	return &ConfigurationError{File: file, Err: fmt.Errorf(format, args...)}
}

// LookupError reports an id or key absent from its catalog.
type LookupError struct {
	Catalog string
	Key     any
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown %s %v", e.Catalog, e.Key)
}

func (e *LookupError) Is(target error) bool { return target == ErrNotFound }
