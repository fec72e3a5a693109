package race

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every ConfigurationError via errors.Is
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError is returned by New when a race cannot be set up from
// the tables. Run must not be attempted.
type ConfigurationError struct {
	Season   int
	Location string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s %d: %s", e.Location, e.Season, e.Reason)
}

// Is reports whether target is ErrConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
