package llmrelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Tool declares a function the model may call, in the OpenAI wire shape.
// This is the boundary shape supplied to CreateMessage; adapters translate
// it bidirectionally to their vendor-native shapes.
type Tool struct {
	Type     string       `json:"type"` // "function"
	Function FunctionSpec `json:"function"`
}

// FunctionSpec defines a callable function. Parameters is a JSON Schema
// object.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Validate checks the minimal structural requirements of a tool.
func (t Tool) Validate() error {
	if t.Type != "function" {
		return fmt.Errorf("tool type must be 'function', got %q", t.Type)
	}
	if t.Function.Name == "" {
		return errors.New("tool function name is required")
	}
	return nil
}

// AnthropicTool is Anthropic's flat tool declaration shape.
type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// GeminiFunctionDeclaration is Gemini's tool declaration shape.
type GeminiFunctionDeclaration struct {
	Name                 string         `json:"name"`
	Description          string         `json:"description,omitempty"`
	ParametersJSONSchema map[string]any `json:"parametersJsonSchema,omitempty"`
}

// ToAnthropicShape converts an OpenAI-shape tool to Anthropic's flat shape.
// Name, description and the parameters object carry over unchanged.
func ToAnthropicShape(t Tool) AnthropicTool {
	return AnthropicTool{
		Name:        t.Function.Name,
		Description: t.Function.Description,
		InputSchema: t.Function.Parameters,
	}
}

// FromAnthropicShape converts an Anthropic flat tool back to OpenAI shape.
func FromAnthropicShape(a AnthropicTool) Tool {
	return Tool{
		Type: "function",
		Function: FunctionSpec{
			Name:        a.Name,
			Description: a.Description,
			Parameters:  a.InputSchema,
		},
	}
}

// ToGeminiShape converts an OpenAI-shape tool to a Gemini function
// declaration.
func ToGeminiShape(t Tool) GeminiFunctionDeclaration {
	return GeminiFunctionDeclaration{
		Name:                 t.Function.Name,
		Description:          t.Function.Description,
		ParametersJSONSchema: t.Function.Parameters,
	}
}

// NormalizeSchemaStrict rewrites a JSON Schema into the strict subset some
// vendors require: every declared property becomes required, additional
// properties are forbidden, and nullable type unions like
// ["string","null"] collapse to their non-null member. Applied uniformly
// before vendor-specific translation. The input map is not mutated.
func NormalizeSchemaStrict(schema map[string]any) (map[string]any, error) {
	if schema == nil {
		return nil, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	normalized, err := normalizeStrict(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, fmt.Errorf("unmarshal normalized schema: %w", err)
	}
	return out, nil
}

// NormalizeToolsStrict returns a copy of tools with every parameters schema
// strict-normalized.
func NormalizeToolsStrict(tools []Tool) ([]Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]Tool, len(tools))
	for i, tool := range tools {
		params, err := NormalizeSchemaStrict(tool.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Function.Name, err)
		}
		out[i] = tool
		out[i].Function.Parameters = params
	}
	return out, nil
}

func normalizeStrict(raw []byte) ([]byte, error) {
	var err error

	// Collapse nullable type unions to the first non-null member.
	if t := gjson.GetBytes(raw, "type"); t.IsArray() {
		for _, member := range t.Array() {
			if member.String() == "null" {
				continue
			}
			raw, err = sjson.SetBytes(raw, "type", member.String())
			if err != nil {
				return nil, err
			}
			break
		}
	}

	if props := gjson.GetBytes(raw, "properties"); props.Exists() && props.IsObject() {
		var required []string
		var walkErr error
		props.ForEach(func(key, value gjson.Result) bool {
			required = append(required, key.String())
			sub, err := normalizeStrict([]byte(value.Raw))
			if err != nil {
				walkErr = err
				return false
			}
			raw, err = sjson.SetRawBytes(raw, "properties."+escapeJSONPath(key.String()), sub)
			if err != nil {
				walkErr = err
				return false
			}
			return true
		})
		if walkErr != nil {
			return nil, walkErr
		}
		if raw, err = sjson.SetBytes(raw, "required", required); err != nil {
			return nil, err
		}
		if raw, err = sjson.SetBytes(raw, "additionalProperties", false); err != nil {
			return nil, err
		}
	}

	if items := gjson.GetBytes(raw, "items"); items.Exists() && items.IsObject() {
		sub, err := normalizeStrict([]byte(items.Raw))
		if err != nil {
			return nil, err
		}
		if raw, err = sjson.SetRawBytes(raw, "items", sub); err != nil {
			return nil, err
		}
	}

	return raw, nil
}

// escapeJSONPath escapes gjson/sjson path metacharacters in an object key.
func escapeJSONPath(key string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		".", "\\.",
		"*", "\\*",
		"?", "\\?",
		"|", "\\|",
	)
	return replacer.Replace(key)
}
