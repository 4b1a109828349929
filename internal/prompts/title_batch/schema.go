package title_batch

import (
	"encoding/json"

	"github.com/chaptermill/chaptermill/internal/providers"
)

// Schema is the JSON schema for batch title output.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "chapter_titles",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"titles": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"index": map[string]any{
								"type":        "integer",
								"description": "Echo of the 1-based input index",
							},
							"title": map[string]any{
								"type": "string",
							},
							"confidence": map[string]any{
								"type": "number",
							},
						},
						"required":             []string{"index", "title"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"titles"},
			"additionalProperties": false,
		},
	},
}

// Title is one generated title, correlated by index.
type Title struct {
	Index      int      `json:"index"`
	Title      string   `json:"title"`
	Confidence *float64 `json:"confidence"`
}

// Result is the parsed batch response.
type Result struct {
	Titles []Title `json:"titles"`
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
