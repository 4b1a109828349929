package disambiguate

import (
	"encoding/json"

	"github.com/chaptermill/chaptermill/internal/providers"
)

// Schema is the JSON schema for the disambiguation verdict.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "disambiguation",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"choice": map[string]any{
					"type":        "integer",
					"description": "1-based index of the chosen interpretation",
				},
				"confidence": map[string]any{
					"type": "number",
				},
				"reason": map[string]any{
					"type": "string",
				},
			},
			"required":             []string{"choice"},
			"additionalProperties": false,
		},
	},
}

// Result is the parsed disambiguation verdict.
type Result struct {
	Choice     int      `json:"choice"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
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
