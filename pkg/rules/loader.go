package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

// packSchema validates rule pack files before any pattern is compiled,
// so a malformed pack is rejected as a whole rather than half-applied.
const packSchema = `{
  "type": "object",
  "required": ["version", "rules"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "severity", "pattern"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "severity": {"type": "string", "enum": ["hard", "advisory"]},
          "pattern": {"type": "string", "minLength": 1},
          "exempt": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

type packFile struct {
	Version int        `json:"version"`
	Rules   []packRule `json:"rules"`
}

type packRule struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Pattern  string `json:"pattern"`
	Exempt   string `json:"exempt,omitempty"`
}

// LoadPack reads a rule pack file, validates it against the pack schema,
// and compiles its patterns. The returned rules are meant to be appended
// after the built-in set.
func LoadPack(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack: %w", err)
	}
	return ParsePack(data)
}

// ParsePack validates and compiles a rule pack from raw JSON.
func ParsePack(data []byte) ([]Rule, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(packSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate rule pack: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("invalid rule pack: %s", result.Errors()[0].String())
	}

	var pack packFile
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack: %w", err)
	}

	rules := make([]Rule, 0, len(pack.Rules))
	for _, pr := range pack.Rules {
		pattern, err := regexp.Compile(pr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", pr.ID, err)
		}
		rule := Rule{
			ID:       pr.ID,
			Severity: Severity(pr.Severity),
			Pattern:  pattern,
		}
		if pr.Exempt != "" {
			exempt, err := regexp.Compile(pr.Exempt)
			if err != nil {
				return nil, fmt.Errorf("rule %s: invalid exempt pattern: %w", pr.ID, err)
			}
			rule.Exempt = exempt
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
