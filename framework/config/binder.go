package config

import (
	"errors"
	"strings"
)

// Bind applies the raw string values for one named option onto the target's
// declared option set. It fails fast: an unknown name, an arity violation, or
// a coercion failure returns a ConfigurationError without mutating anything.
// Binding is order-independent across option names, but insertion order is
// preserved within one multi-valued option.
func Bind(target Configurable, name string, values []string) error {
	return target.Options().Bind(name, values)
}

// Bind applies raw values to the descriptor declared under name. See Bind.
func (s *OptionSet) Bind(name string, values []string) error {
	d := s.byName[name]
	if d == nil {
		return &ConfigurationError{Kind: ErrUnknownOption, Option: name, Index: -1}
	}
	if len(values) == 0 {
		return nil
	}
	if d.Arity == AritySingle && len(values) > 1 {
		return &ConfigurationError{
			Kind:   ErrArityViolation,
			Option: name,
			Index:  -1,
			Value:  strings.Join(values, ", "),
		}
	}
	if err := d.apply(values); err != nil {
		var ce *coerceError
		if errors.As(err, &ce) {
			return &ConfigurationError{
				Kind:       ErrTypeMismatch,
				Option:     name,
				Index:      -1,
				Value:      ce.value,
				TargetType: ce.targetType,
				Err:        ce.err,
			}
		}
		return err
	}
	d.bound = true
	return nil
}
