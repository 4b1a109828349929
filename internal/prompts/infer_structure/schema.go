package infer_structure

import (
	"encoding/json"

	"github.com/chaptermill/chaptermill/internal/providers"
)

// Schema is the JSON schema for structure inference.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "structure_inference",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"suggested_chapters": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"start_char": map[string]any{"type": "integer"},
							"end_char":   map[string]any{"type": "integer"},
							"title":      map[string]any{"type": "string"},
							"reason":     map[string]any{"type": "string"},
							"confidence": map[string]any{"type": "number"},
						},
						"required":             []string{"start_char", "end_char", "title"},
						"additionalProperties": false,
					},
				},
				"confidence": map[string]any{
					"type": "number",
				},
			},
			"required":             []string{"suggested_chapters"},
			"additionalProperties": false,
		},
	},
}

// SuggestedChapter is one proposed chapter span.
type SuggestedChapter struct {
	StartChar  int      `json:"start_char"`
	EndChar    int      `json:"end_char"`
	Title      string   `json:"title"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence"`
}

// Result is the parsed inference response.
type Result struct {
	SuggestedChapters []SuggestedChapter `json:"suggested_chapters"`
	Confidence        *float64           `json:"confidence"`
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
