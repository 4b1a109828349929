package detect_toc

import (
	"encoding/json"

	"github.com/chaptermill/chaptermill/internal/providers"
)

// Schema is the JSON schema for the ToC verdict.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "toc_verdict",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"has_toc": map[string]any{
					"type": "boolean",
				},
				"confidence": map[string]any{
					"type": "number",
				},
				"reason": map[string]any{
					"type": "string",
				},
				"end_line": map[string]any{
					"type":        []string{"integer", "null"},
					"description": "0-based line index where the ToC ends",
				},
			},
			"required":             []string{"has_toc"},
			"additionalProperties": false,
		},
	},
}

// Result is the parsed ToC verdict.
type Result struct {
	HasToc     bool     `json:"has_toc"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
	EndLine    *int     `json:"end_line"`
}

// ParseResult parses the structured response.
func ParseResult(parsedJSON json.RawMessage) (*Result, error) {
	var result Result
	if err := json.Unmarshal(parsedJSON, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BuildResponseFormat returns the response format for the chat request.
func BuildResponseFormat() *providers.ResponseFormat {
	jsonSchema, _ := json.Marshal(Schema["json_schema"])
	return &providers.ResponseFormat{
		Type:       "json_schema",
		JSONSchema: jsonSchema,
	}
}
