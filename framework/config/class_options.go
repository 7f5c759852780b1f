package config

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const optionsKey = "options"

// OptionValues is an ordered multi-value container: a sequence of name/value
// pairs in which the same name may appear any number of times. Insertion
// order is preserved both across names and within one name.
type OptionValues struct {
	pairs []optionPair
}

type optionPair struct {
	name  string
	value string
}

func (v *OptionValues) add(name, value string) {
	v.pairs = append(v.pairs, optionPair{name, value})
}

// Len returns the total number of name/value pairs.
func (v OptionValues) Len() int { return len(v.pairs) }

// Names returns each distinct option name in first-appearance order.
func (v OptionValues) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for _, p := range v.pairs {
		if !seen[p.name] {
			names = append(names, p.name)
			seen[p.name] = true
		}
	}
	return names
}

// Values returns every value bound to name, in insertion order.
func (v OptionValues) Values(name string) []string {
	var values []string
	for _, p := range v.pairs {
		if p.name == name {
			values = append(values, p.value)
		}
	}
	return values
}

// ClassOptionsRecord is one normalized document entry: a class identifier and
// the option values declared for it. Records are immutable once produced.
type ClassOptionsRecord struct {
	Class   string
	Options OptionValues
}

// ParseClassOptions normalizes a generic document into ordered records. The
// document is a sequence whose entries are either bare class-name strings or
// single-key mappings of class name to an optional body containing an
// "options" list.
//
// An entry that is neither a string nor such a mapping is a MalformedEntry
// error identifying the entry's index. A mapping with a null body yields a
// record with no options.
func ParseClassOptions(document []interface{}) ([]ClassOptionsRecord, error) {
	records := make([]ClassOptionsRecord, 0, len(document))
	for i, entry := range document {
		switch entry := entry.(type) {
		case string:
			records = append(records, ClassOptionsRecord{Class: entry})
		case map[string]interface{}:
			if len(entry) != 1 {
				return nil, malformed(i, fmt.Sprintf("expected a single class name key, found %d keys", len(entry)))
			}
			var class string
			var body interface{}
			for k, v := range entry {
				class, body = k, v
			}
			rec := ClassOptionsRecord{Class: class}
			if err := parseEntryBody(&rec, i, body); err != nil {
				return nil, err
			}
			records = append(records, rec)
		default:
			return nil, malformed(i, fmt.Sprintf("expected a class name or mapping, found %T", entry))
		}
	}
	return records, nil
}

func parseEntryBody(rec *ClassOptionsRecord, index int, body interface{}) error {
	if body == nil {
		return nil
	}
	bodyMap, ok := body.(map[string]interface{})
	if !ok {
		return malformed(index, fmt.Sprintf("class %q: expected a mapping body, found %T", rec.Class, body))
	}
	rawOptions, ok := bodyMap[optionsKey]
	if !ok {
		return nil
	}
	optionList, ok := rawOptions.([]interface{})
	if !ok {
		return malformed(index, fmt.Sprintf("class %q: %q must be a list, found %T", rec.Class, optionsKey, rawOptions))
	}
	for _, rawOption := range optionList {
		optionMap, ok := rawOption.(map[string]interface{})
		if !ok {
			return malformed(index, fmt.Sprintf("class %q: each option must be a mapping, found %T", rec.Class, rawOption))
		}
		// A single option mapping usually has one key. When it has several,
		// the decoded Go map has lost the document order, so keys are taken
		// in sorted order to keep parsing deterministic.
		keys := maps.Keys(optionMap)
		if len(keys) > 1 {
			slices.Sort(keys)
		}
		for _, name := range keys {
			value, err := stringifyOptionValue(optionMap[name])
			if err != nil {
				return malformed(index, fmt.Sprintf("class %q: option %q: %v", rec.Class, name, err))
			}
			rec.Options.add(name, value)
		}
	}
	return nil
}

func stringifyOptionValue(v interface{}) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v), nil
	case nil:
		return "", fmt.Errorf("value is null")
	default:
		return "", fmt.Errorf("expected a scalar value, found %T", v)
	}
}

func malformed(index int, detail string) error {
	return &ConfigurationError{Kind: ErrMalformedEntry, Index: index, Detail: detail}
}
