package identify_format

import (
	"encoding/json"

	"github.com/chaptermill/chaptermill/internal/providers"
)

// Schema is the JSON schema for format identification.
var Schema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "format_identification",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"format_type": map[string]any{
					"type":        "string",
					"description": "e.g. 'chinese_numbered', 'english_numbered', 'mixed', 'unmarked'",
				},
				"chapter_pattern": map[string]any{
					"type": "string",
				},
				"sample_headings": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
				"suggested_regex": map[string]any{
					"type": []string{"string", "null"},
				},
				"confidence": map[string]any{
					"type": "number",
				},
			},
			"required":             []string{"format_type"},
			"additionalProperties": false,
		},
	},
}

// Result is the parsed format identification.
type Result struct {
	FormatType     string   `json:"format_type"`
	ChapterPattern string   `json:"chapter_pattern"`
	SampleHeadings []string `json:"sample_headings"`
	SuggestedRegex *string  `json:"suggested_regex"`
	Confidence     *float64 `json:"confidence"`
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
