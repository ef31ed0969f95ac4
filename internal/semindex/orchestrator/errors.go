package orchestrator

import (
	"fmt"

	"github.com/terminology-platform/semindex/internal/domain"
)

// ConversionFailureError wraps an axiom-adapter failure (C3). It is fatal:
// it must abort the commit.
type ConversionFailureError struct {
	Form domain.Form
	Err  error
}

func (e *ConversionFailureError) Error() string {
	return fmt.Sprintf("semindex: axiom conversion failed for %s form: %v", e.Form, e.Err)
}

func (e *ConversionFailureError) Unwrap() error { return e.Err }

// StorageFailureError wraps a store I/O failure (query or batched write).
// It is fatal: it must abort the commit.
type StorageFailureError struct {
	Form domain.Form
	Op   string
	Err  error
}

func (e *StorageFailureError) Error() string {
	return fmt.Sprintf("semindex: storage failure during %s (%s form): %v", e.Op, e.Form, e.Err)
}

func (e *StorageFailureError) Unwrap() error { return e.Err }
