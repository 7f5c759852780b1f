package config

import (
	"fmt"
	"strings"
)

// ErrorKind discriminates the configuration failures that can abort a build.
type ErrorKind int

const (
	// ErrUnknownOption means an option name does not exist on the target class.
	ErrUnknownOption ErrorKind = iota
	// ErrTypeMismatch means a raw value could not be coerced to the declared type.
	ErrTypeMismatch
	// ErrArityViolation means a single-valued option received multiple values.
	ErrArityViolation
	// ErrMalformedEntry means a document entry was neither a string nor a valid mapping.
	ErrMalformedEntry
	// ErrClassNotFound means the class identifier is not in the registry.
	ErrClassNotFound
	// ErrResolution wraps a remote-file resolution failure for an option value.
	ErrResolution
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnknownOption:
		return "UnknownOption"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrArityViolation:
		return "ArityViolation"
	case ErrMalformedEntry:
		return "MalformedEntry"
	case ErrClassNotFound:
		return "ClassNotFound"
	case ErrResolution:
		return "Resolution"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ConfigurationError is returned for any failure while parsing a document or
// building a configuration. It always names the offending option, class, or
// document index so that a typo is diagnosable from the message alone.
type ConfigurationError struct {
	Kind       ErrorKind
	Class      string // offending class identifier, when known
	Index      int    // document entry index, or -1 when not applicable
	Option     string
	Value      string
	TargetType string
	Detail     string
	Err        error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case ErrUnknownOption:
		fmt.Fprintf(&b, "unknown option %q", e.Option)
	case ErrTypeMismatch:
		fmt.Fprintf(&b, "option %q: cannot parse %q as %s", e.Option, e.Value, e.TargetType)
	case ErrArityViolation:
		fmt.Fprintf(&b, "option %q accepts a single value, got [%s]", e.Option, e.Value)
	case ErrMalformedEntry:
		fmt.Fprintf(&b, "malformed entry at index %d: %s", e.Index, e.Detail)
	case ErrClassNotFound:
		fmt.Fprintf(&b, "unknown class %q", e.Class)
	case ErrResolution:
		fmt.Fprintf(&b, "option %q: %v", e.Option, e.Err)
	default:
		fmt.Fprintf(&b, "configuration error: %s", e.Detail)
	}
	if e.Class != "" && e.Kind != ErrClassNotFound {
		fmt.Fprintf(&b, " (class %q", e.Class)
		if e.Index >= 0 {
			fmt.Fprintf(&b, ", entry %d", e.Index)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
