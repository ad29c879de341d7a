package migrate

import (
	"errors"
)

// FailureReport is the structured, serializable form of a migration failure.
// The cause chain is flattened into an ordered outermost-to-innermost list so
// no diagnostic context is lost when the record crosses a process or storage
// boundary (ledger row, log line, API response).
type FailureReport struct {
	Message string   `json:"message"`
	Chain   []string `json:"chain,omitempty"`
	Unit    string   `json:"unit,omitempty"`
}

// NormalizeFailure converts an arbitrary error into a FailureReport. It never
// fails; a nil error yields a nil report.
func NormalizeFailure(err error) *FailureReport {
	if err == nil {
		return nil
	}

	report := &FailureReport{
		Message: err.Error(),
		Chain:   flattenChain(err),
	}

	var migrationErr *MigrationError
	if errors.As(err, &migrationErr) {
		report.Unit = migrationErr.Identifier
	}

	return report
}

// flattenChain walks the error's unwrap tree depth-first and records each
// node's message. Both single-cause (Unwrap() error) and joined
// (Unwrap() []error) wrappers are followed.
func flattenChain(err error) []string {
	var chain []string
	var walk func(err error)
	walk = func(err error) {
		if err == nil {
			return
		}
		chain = append(chain, err.Error())
		switch unwrapped := err.(type) {
		case interface{ Unwrap() error }:
			walk(unwrapped.Unwrap())
		case interface{ Unwrap() []error }:
			for _, cause := range unwrapped.Unwrap() {
				walk(cause)
			}
		}
	}
	walk(err)
	return chain
}
