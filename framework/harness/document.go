package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/devicelab/test-harness/framework/config"
)

const (
	descriptionKey     = "description"
	targetPreparersKey = "target_preparers"
	testsKey           = "tests"
)

// Configuration is one parsed configuration document: a description plus the
// preparers and tests to construct, in document order.
type Configuration struct {
	Description string
	Preparers   []config.ClassOptionsRecord
	Tests       []config.ClassOptionsRecord
}

// ParseConfiguration parses a configuration document from JSON or YAML. The
// document must be a mapping with a "description" and a "tests" key;
// "target_preparers" is optional. Both sections use the class/options entry
// format.
func ParseConfiguration(data []byte) (*Configuration, error) {
	var raw map[string]interface{}
	if err := parseJSONOrYAML(data, &raw); err != nil {
		return nil, err
	}

	var missing []string
	for _, key := range []string{descriptionKey, testsKey} {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("configuration is missing required keys: %s", strings.Join(missing, ", "))
	}

	ret := &Configuration{}
	description, ok := raw[descriptionKey].(string)
	if !ok {
		return nil, fmt.Errorf("configuration key %q must be a string", descriptionKey)
	}
	ret.Description = description

	var err error
	if rawPreparers, ok := raw[targetPreparersKey]; ok {
		if ret.Preparers, err = parseSection(targetPreparersKey, rawPreparers); err != nil {
			return nil, err
		}
	}
	if ret.Tests, err = parseSection(testsKey, raw[testsKey]); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadConfiguration reads and parses a configuration document from a file.
func LoadConfiguration(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfiguration(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func parseSection(key string, raw interface{}) ([]config.ClassOptionsRecord, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("configuration key %q must be a list, found %T", key, raw)
	}
	records, err := config.ParseClassOptions(list)
	if err != nil {
		return nil, fmt.Errorf("in %q: %w", key, err)
	}
	return records, nil
}

// parseJSONOrYAML is used in the same way as json.Unmarshal, but if the data
// is YAML and not JSON, it will convert the YAML to JSON and then parse it as
// JSON.
func parseJSONOrYAML(data []byte, target interface{}) error {
	if err := json.Unmarshal(data, target); err == nil {
		return nil
	}
	var rawStructure interface{}
	if err := yaml.Unmarshal(data, &rawStructure); err != nil {
		return err
	}
	normalized, err := normalizeParsedYAMLForJSON(rawStructure)
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, target)
}

func normalizeParsedYAMLForJSON(data interface{}) (interface{}, error) {
	switch data := data.(type) {
	case []interface{}:
		arrayOut := make([]interface{}, 0)
		for _, v := range data {
			v1, err := normalizeParsedYAMLForJSON(v)
			if err != nil {
				return nil, err
			}
			arrayOut = append(arrayOut, v1)
		}
		return arrayOut, nil
	case map[string]interface{}:
		mapOut := make(map[string]interface{})
		for k, v := range data {
			v1, err := normalizeParsedYAMLForJSON(v)
			if err != nil {
				return nil, err
			}
			mapOut[k] = v1
		}
		return mapOut, nil
	case map[interface{}]interface{}:
		mapOut := make(map[string]interface{})
		for k, v := range data {
			switch key := k.(type) {
			case string:
				v1, err := normalizeParsedYAMLForJSON(v)
				if err != nil {
					return nil, err
				}
				mapOut[key] = v1
			default:
				return nil, fmt.Errorf(
					"YAML data contained a map key of type %t; only string keys are allowed",
					k)
			}
		}
		return mapOut, nil
	default:
		return data, nil
	}
}
