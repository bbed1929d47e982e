package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	llmrelay "github.com/vireo-ai/vireo-llm-go"
)

// convertTools converts library tool declarations to SDK tool params. Tools
// are normalized to the strict schema dialect first so every vendor sees the
// same effective contract.
func convertTools(tools []llmrelay.Tool) ([]anthropic.ToolUnionParam, error) {
	normalized, err := llmrelay.NormalizeToolsStrict(tools)
	if err != nil {
		return nil, err
	}

	result := make([]anthropic.ToolUnionParam, 0, len(normalized))
	for i, tool := range normalized {
		param, err := convertTool(&tool)
		if err != nil {
			return nil, fmt.Errorf("tool %d (%s): %w", i, tool.Function.Name, err)
		}
		result = append(result, param)
	}
	return result, nil
}

// convertTool maps the nested function declaration onto Anthropic's
// input_schema shape. Properties and required move into dedicated fields;
// everything else in the schema rides along in ExtraFields.
func convertTool(tool *llmrelay.Tool) (anthropic.ToolUnionParam, error) {
	if err := tool.Validate(); err != nil {
		return anthropic.ToolUnionParam{}, err
	}

	schema := anthropic.ToolInputSchemaParam{
		Properties:  tool.Function.Parameters["properties"],
		ExtraFields: make(map[string]any),
	}
	if required, ok := tool.Function.Parameters["required"].([]any); ok {
		schema.Required = make([]string, 0, len(required))
		for _, v := range required {
			if s, ok := v.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	} else if required, ok := tool.Function.Parameters["required"].([]string); ok {
		schema.Required = required
	}
	for key, value := range tool.Function.Parameters {
		if key != "type" && key != "properties" && key != "required" {
			schema.ExtraFields[key] = value
		}
	}

	param := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
	if tool.Function.Description != "" && param.OfTool != nil {
		param.OfTool.Description = anthropic.String(tool.Function.Description)
	}
	return param, nil
}
