package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Arity describes how many raw values an option accepts.
type Arity int

const (
	AritySingle Arity = iota
	ArityMulti
	ArityMap
)

// ValueKind describes the declared type of an option. KindFile marks the
// option value as a file reference that the builder may resolve remotely.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindDuration
	KindEnum
	KindFile
	KindCustom
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDuration:
		return "duration"
	case KindEnum:
		return "enum"
	case KindFile:
		return "file"
	case KindCustom:
		return "custom"
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Configurable is implemented by any object that can be constructed from a
// class/options record. The returned OptionSet must be the same instance for
// the lifetime of the object, since binding mutates the fields it points to.
type Configurable interface {
	Options() *OptionSet
}

// OptionDescriptor declares one named option of a configurable type: its
// arity, its declared type, and how to assign coerced values to the target
// field. Descriptors are created through the OptionSet *Var methods.
type OptionDescriptor struct {
	Name        string
	Description string
	Arity       Arity
	Kind        ValueKind

	apply func(values []string) error

	// Set for file-kind descriptors so the builder can read back the bound
	// reference and substitute the resolved local path.
	fileValue  *string
	fileValues *[]string

	bound bool
}

// Bound reports whether any values have been bound to this descriptor.
func (d *OptionDescriptor) Bound() bool { return d.bound }

type coerceError struct {
	value      string
	targetType string
	err        error
}

func (e *coerceError) Error() string {
	return fmt.Sprintf("cannot parse %q as %s", e.value, e.targetType)
}

func (e *coerceError) Unwrap() error { return e.err }

// OptionSet is the declared option table of one configurable object. Names
// are unique within a set; declaring the same name twice is a programming
// error and panics, like redefining a flag.
type OptionSet struct {
	descriptors []*OptionDescriptor
	byName      map[string]*OptionDescriptor
}

func NewOptionSet() *OptionSet {
	return &OptionSet{byName: make(map[string]*OptionDescriptor)}
}

func (s *OptionSet) register(d *OptionDescriptor) *OptionDescriptor {
	if _, ok := s.byName[d.Name]; ok {
		panic(fmt.Sprintf("option %q declared twice", d.Name))
	}
	s.descriptors = append(s.descriptors, d)
	s.byName[d.Name] = d
	return d
}

// Lookup returns the descriptor for name, or nil if the name is not declared.
func (s *OptionSet) Lookup(name string) *OptionDescriptor { return s.byName[name] }

// Descriptors returns all descriptors in declaration order.
func (s *OptionSet) Descriptors() []*OptionDescriptor {
	return append([]*OptionDescriptor(nil), s.descriptors...)
}

// StringVar declares a single-valued string option bound to p.
func (s *OptionSet) StringVar(p *string, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: AritySingle, Kind: KindString,
		apply: func(values []string) error {
			*p = values[0]
			return nil
		},
	})
}

// BoolVar declares a single-valued boolean option bound to p.
func (s *OptionSet) BoolVar(p *bool, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: AritySingle, Kind: KindBool,
		apply: func(values []string) error {
			v, err := strconv.ParseBool(values[0])
			if err != nil {
				return &coerceError{values[0], "bool", err}
			}
			*p = v
			return nil
		},
	})
}

// IntVar declares a single-valued integer option bound to p.
func (s *OptionSet) IntVar(p *int, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: AritySingle, Kind: KindInt,
		apply: func(values []string) error {
			v, err := strconv.Atoi(values[0])
			if err != nil {
				return &coerceError{values[0], "int", err}
			}
			*p = v
			return nil
		},
	})
}

// Float64Var declares a single-valued float option bound to p.
func (s *OptionSet) Float64Var(p *float64, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: AritySingle, Kind: KindFloat,
		apply: func(values []string) error {
			v, err := strconv.ParseFloat(values[0], 64)
			if err != nil {
				return &coerceError{values[0], "float", err}
			}
			*p = v
			return nil
		},
	})
}

// DurationVar declares a single-valued duration option bound to p, using Go
// duration syntax ("30s", "5m").
func (s *OptionSet) DurationVar(p *time.Duration, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: AritySingle, Kind: KindDuration,
		apply: func(values []string) error {
			v, err := time.ParseDuration(values[0])
			if err != nil {
				return &coerceError{values[0], "duration", err}
			}
			*p = v
			return nil
		},
	})
}

// EnumVar declares a single-valued option restricted to the allowed values.
func (s *OptionSet) EnumVar(p *string, name string, allowed []string, description string) {
	allowedCopy := append([]string(nil), allowed...)
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: AritySingle, Kind: KindEnum,
		apply: func(values []string) error {
			for _, a := range allowedCopy {
				if values[0] == a {
					*p = values[0]
					return nil
				}
			}
			return &coerceError{values[0], "one of [" + strings.Join(allowedCopy, ", ") + "]", nil}
		},
	})
}

// StringsVar declares a multi-valued string option bound to p. Repeated
// declarations accumulate in insertion order.
func (s *OptionSet) StringsVar(p *[]string, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: ArityMulti, Kind: KindString,
		apply: func(values []string) error {
			*p = append(*p, values...)
			return nil
		},
	})
}

// MapVar declares a key/value option bound to p. Each raw value must have the
// form "key=value"; a duplicate key overwrites the earlier value.
func (s *OptionSet) MapVar(p *map[string]string, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: ArityMap, Kind: KindString,
		apply: func(values []string) error {
			parsed := make([][2]string, 0, len(values))
			for _, raw := range values {
				eq := strings.Index(raw, "=")
				if eq <= 0 {
					return &coerceError{raw, "key=value pair", nil}
				}
				parsed = append(parsed, [2]string{raw[:eq], raw[eq+1:]})
			}
			if *p == nil {
				*p = make(map[string]string)
			}
			for _, kv := range parsed {
				(*p)[kv[0]] = kv[1]
			}
			return nil
		},
	})
}

// FileVar declares a single-valued file option bound to p. Values carrying a
// URI scheme are resolved to local files during the build and the bound value
// is replaced with the local path.
func (s *OptionSet) FileVar(p *string, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: AritySingle, Kind: KindFile,
		fileValue: p,
		apply: func(values []string) error {
			*p = values[0]
			return nil
		},
	})
}

// FilesVar declares a multi-valued file option bound to p, with the same
// resolution behavior as FileVar for each value.
func (s *OptionSet) FilesVar(p *[]string, name, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: ArityMulti, Kind: KindFile,
		fileValues: p,
		apply: func(values []string) error {
			*p = append(*p, values...)
			return nil
		},
	})
}

// FuncVar declares a custom option; fn is called once per raw value, in
// value order. Unlike the typed *Var methods, which coerce every value
// before assigning any, a FuncVar takes effect value by value: when fn
// fails partway through a binding, the effects of the earlier calls stand.
// A callback that needs all-or-nothing behavior must accumulate the values
// and defer its side effects until it has seen them all.
func (s *OptionSet) FuncVar(fn func(value string) error, name string, arity Arity, description string) {
	s.register(&OptionDescriptor{
		Name: name, Description: description, Arity: arity, Kind: KindCustom,
		apply: func(values []string) error {
			for _, v := range values {
				if err := fn(v); err != nil {
					return &coerceError{v, "custom value", err}
				}
			}
			return nil
		},
	})
}
