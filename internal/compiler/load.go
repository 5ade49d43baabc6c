package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fhirflat/internal/ir"
)

// LoadFile reads a view definition. The format follows the extension:
// .json, .yaml/.yml or .cue.
func LoadFile(path string) (ir.ViewDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.ViewDefinition{}, fmt.Errorf("read view definition: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		def, err := LoadJSON(data)
		if err != nil {
			return ir.ViewDefinition{}, &LoadError{Source: path, Message: err.Error()}
		}
		return def, nil
	case ".yaml", ".yml":
		def, err := LoadYAML(data)
		if err != nil {
			return ir.ViewDefinition{}, &LoadError{Source: path, Message: err.Error()}
		}
		return def, nil
	case ".cue":
		return LoadCUEBytes(path, data)
	default:
		return ir.ViewDefinition{}, &LoadError{
			Source:  path,
			Message: fmt.Sprintf("unsupported view definition format %q (want .json, .yaml or .cue)", filepath.Ext(path)),
		}
	}
}

// LoadJSON decodes a JSON view definition. Unknown fields are rejected.
func LoadJSON(data []byte) (ir.ViewDefinition, error) {
	return decodeJSON(data)
}

// LoadYAML decodes a YAML view definition. Unknown fields are rejected.
func LoadYAML(data []byte) (ir.ViewDefinition, error) {
	data, err := YAMLToJSON(data)
	if err != nil {
		return ir.ViewDefinition{}, err
	}
	return decodeJSON(data)
}

// YAMLToJSON converts a YAML document to JSON so YAML inputs can share the
// strict JSON decoders.
func YAMLToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	normalized, err := normalizeYAML(raw)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("convert YAML: %w", err)
	}
	return out, nil
}

func decodeJSON(data []byte) (ir.ViewDefinition, error) {
	var def ir.ViewDefinition
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return ir.ViewDefinition{}, fmt.Errorf("decode view definition: %w", err)
	}
	return def, nil
}

// normalizeYAML converts YAML maps to map[string]any so the value can be
// encoded as JSON.
func normalizeYAML(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			n, err := normalizeYAML(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("YAML key %v is not a string", k)
			}
			n, err := normalizeYAML(e)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			n, err := normalizeYAML(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return val, nil
	}
}
