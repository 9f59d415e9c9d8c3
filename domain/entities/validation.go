package entities

import "strings"

// ValidationResult is the outcome of validating a descriptor or API document.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError is one violation, located by a JSON pointer or field path.
type ValidationError struct {
	Field   string
	Message string
}

// Error joins all violations. It is only meaningful when Valid is false.
func (r *ValidationResult) Error() string {
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if e.Field == "" {
			parts = append(parts, e.Message)
			continue
		}
		parts = append(parts, e.Field+": "+e.Message)
	}
	return strings.Join(parts, "; ")
}
