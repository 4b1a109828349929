package confirm_headings

import (
	"encoding/json"

	"github.com/chaptermill/chaptermill/internal/providers"
)

// Schema is the JSON schema for confirmation output.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "heading_confirmation",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"decisions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"index": map[string]any{
								"type":        "integer",
								"description": "Echo of the 1-based input index",
							},
							"is_chapter": map[string]any{
								"type": "boolean",
							},
							"confidence": map[string]any{
								"type": "number",
							},
							"reason": map[string]any{
								"type": "string",
							},
							"suggested_title": map[string]any{
								"type": []string{"string", "null"},
							},
						},
						"required":             []string{"index", "is_chapter"},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"decisions"},
			"additionalProperties": false,
		},
	},
}

// Decision is the verdict for one candidate.
type Decision struct {
	Index          int      `json:"index"`
	IsChapter      bool     `json:"is_chapter"`
	Confidence     *float64 `json:"confidence"`
	Reason         string   `json:"reason"`
	SuggestedTitle *string  `json:"suggested_title"`
}

// Result is the parsed confirmation response.
type Result struct {
	Decisions []Decision `json:"decisions"`
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
