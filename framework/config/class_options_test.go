package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassOptionsBareClassName(t *testing.T) {
	records, err := ParseClassOptions([]interface{}{"ClassA"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ClassA", records[0].Class)
	assert.Equal(t, 0, records[0].Options.Len())
}

func TestParseClassOptionsMixedEntries(t *testing.T) {
	document := []interface{}{
		"ClassA",
		map[string]interface{}{
			"ClassB": map[string]interface{}{
				"options": []interface{}{
					map[string]interface{}{"x": "1"},
					map[string]interface{}{"x": "2"},
				},
			},
		},
	}
	records, err := ParseClassOptions(document)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ClassA", records[0].Class)
	assert.Equal(t, 0, records[0].Options.Len())

	assert.Equal(t, "ClassB", records[1].Class)
	assert.Equal(t, []string{"x"}, records[1].Options.Names())
	assert.Equal(t, []string{"1", "2"}, records[1].Options.Values("x"))
}

func TestParseClassOptionsNullBody(t *testing.T) {
	records, err := ParseClassOptions([]interface{}{
		map[string]interface{}{"ClassA": nil},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ClassA", records[0].Class)
	assert.Equal(t, 0, records[0].Options.Len())
}

func TestParseClassOptionsScalarCoercion(t *testing.T) {
	records, err := ParseClassOptions([]interface{}{
		map[string]interface{}{
			"ClassA": map[string]interface{}{
				"options": []interface{}{
					map[string]interface{}{"flag": true},
					map[string]interface{}{"count": 3},
					map[string]interface{}{"ratio": 1.5},
				},
			},
		},
	})
	require.NoError(t, err)
	opts := records[0].Options
	assert.Equal(t, []string{"true"}, opts.Values("flag"))
	assert.Equal(t, []string{"3"}, opts.Values("count"))
	assert.Equal(t, []string{"1.5"}, opts.Values("ratio"))
}

func TestParseClassOptionsPreservesOrderAcrossNames(t *testing.T) {
	records, err := ParseClassOptions([]interface{}{
		map[string]interface{}{
			"ClassA": map[string]interface{}{
				"options": []interface{}{
					map[string]interface{}{"b": "1"},
					map[string]interface{}{"a": "2"},
					map[string]interface{}{"b": "3"},
				},
			},
		},
	})
	require.NoError(t, err)
	opts := records[0].Options
	assert.Equal(t, []string{"b", "a"}, opts.Names())
	assert.Equal(t, []string{"1", "3"}, opts.Values("b"))
	assert.Equal(t, []string{"2"}, opts.Values("a"))
	assert.Equal(t, 3, opts.Len())
}

func TestParseClassOptionsMalformedEntries(t *testing.T) {
	badDocuments := map[string][]interface{}{
		"non-string non-map entry": {42},
		"multiple class keys": {
			map[string]interface{}{"ClassA": nil, "ClassB": nil},
		},
		"body is not a mapping": {
			map[string]interface{}{"ClassA": "not a map"},
		},
		"options is not a list": {
			map[string]interface{}{"ClassA": map[string]interface{}{"options": "x"}},
		},
		"option is not a mapping": {
			map[string]interface{}{"ClassA": map[string]interface{}{
				"options": []interface{}{"bare"},
			}},
		},
		"option value is a list": {
			map[string]interface{}{"ClassA": map[string]interface{}{
				"options": []interface{}{
					map[string]interface{}{"x": []interface{}{"1"}},
				},
			}},
		},
		"option value is null": {
			map[string]interface{}{"ClassA": map[string]interface{}{
				"options": []interface{}{
					map[string]interface{}{"x": nil},
				},
			}},
		},
	}
	for desc, document := range badDocuments {
		t.Run(desc, func(t *testing.T) {
			_, err := ParseClassOptions(document)
			require.Error(t, err)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, ErrMalformedEntry, ce.Kind)
		})
	}
}

func TestParseClassOptionsErrorIdentifiesEntryIndex(t *testing.T) {
	_, err := ParseClassOptions([]interface{}{"ClassA", 42})
	require.Error(t, err)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Index)
}
