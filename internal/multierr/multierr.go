// Package multierr provides helpers for managing multiple errors.
package multierr

import (
	"fmt"
	"strings"
)

// Format creates an error value from the input array (which must not be empty)
// If the input contains a single error, it is returned as is.
// Otherwise, a new error value is created consisting of the concatenation of the input values,
// separated by the provided separator and bracketed with the provided initial and final strings.
func Format(first, middle, last string, errs []error) error {
	switch len(errs) {
	case 0:
		return fmt.Errorf("internal error: multierr.Format called with 0 errors")
	case 1:
		return errs[0]
	default:
		// Aggregate the %w verbs so that the result still matches the individual errors
		// using errors.Is / errors.As.
		verbs := first + strings.Repeat("%w"+middle, len(errs)-1) + "%w" + last
		values := make([]any, 0, len(errs))
		for _, e := range errs {
			values = append(values, e)
		}
		return fmt.Errorf(verbs, values...)
	}
}
