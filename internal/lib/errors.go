package lib

import "fmt"

// WrapError adds a higher-level sentinel on top of the original error,
// keeping both matchable with errors.Is
func WrapError(outer error, inner error) error {
	return fmt.Errorf("%w: %w", outer, inner)
}
