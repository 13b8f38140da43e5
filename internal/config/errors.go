package config

import (
	"fmt"
	"strings"
)

// ConfigSourceError reports an environments document that could not be read or
// parsed. It is fatal; retrying with the same input gives the same result.
type ConfigSourceError struct {
	Source string
	Reason string
	Err    error
}

func (e *ConfigSourceError) Error() string {
	msg := fmt.Sprintf("config source %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigSourceError) Unwrap() error { return e.Err }

// UnknownEnvironmentError reports a lookup for a name the registry does not hold.
type UnknownEnvironmentError struct {
	Name      string
	Available []string
}

func (e *UnknownEnvironmentError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("environment configuration not found for: %s", e.Name)
	}
	return fmt.Sprintf("environment configuration not found for: %s (available: %s)",
		e.Name, strings.Join(e.Available, ", "))
}

// InvalidEnvironmentConfigError reports the first field of an environment that
// is missing or violates its constraint.
type InvalidEnvironmentConfigError struct {
	Environment string
	Field       string
	Constraint  string
	Err         error
}

func (e *InvalidEnvironmentConfigError) Error() string {
	msg := fmt.Sprintf("environment %q: field %s: %s", e.Environment, e.Field, e.Constraint)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidEnvironmentConfigError) Unwrap() error { return e.Err }
