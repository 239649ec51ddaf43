package evaluate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/pkg/textx"
)

// resultSchema is the strict shape the evaluator is instructed to emit.
// Output matching it verbatim skips lenient coercion.
const resultSchema = `{
  "type": "object",
  "required": ["score", "matched_skills", "missing_skills", "reason"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "matched_skills": {"type": "array", "items": {"type": "string"}},
    "missing_skills": {"type": "array", "items": {"type": "string"}},
    "reason": {"type": "string"}
  }
}`

var resultSchemaLoader = gojsonschema.NewStringLoader(resultSchema)

// Outcome is the schema-coerced qualitative evaluation for one pair.
type Outcome struct {
	Score         int      `json:"score"`
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
	Reason        string   `json:"reason"`
}

// parseOutcome parses sanitized evaluator output into an Outcome.
// Strictly valid output decodes directly; anything else goes through
// per-key lenient coercion. A non-JSON payload is an error for the
// caller to degrade on.
func parseOutcome(sanitized string, reasonMax int) (Outcome, error) {
	var probe any
	if err := json.Unmarshal([]byte(sanitized), &probe); err != nil {
		return Outcome{}, fmt.Errorf("op=evaluate.parseOutcome: %w: %v", domain.ErrSchemaInvalid, err)
	}
	obj, ok := probe.(map[string]any)
	if !ok {
		return Outcome{}, fmt.Errorf("op=evaluate.parseOutcome: %w: output is not a JSON object", domain.ErrSchemaInvalid)
	}

	if res, err := gojsonschema.Validate(resultSchemaLoader, gojsonschema.NewStringLoader(sanitized)); err == nil && res.Valid() {
		var out Outcome
		if err := json.Unmarshal([]byte(sanitized), &out); err == nil {
			out.Reason = textx.Truncate(out.Reason, reasonMax)
			out.MatchedSkills = trimAll(out.MatchedSkills)
			out.MissingSkills = trimAll(out.MissingSkills)
			return out, nil
		}
	}
	return coerceObject(obj, reasonMax), nil
}

// coerceObject maps a loosely-shaped JSON object onto the result schema.
// Every key degrades independently; a broken score never loses the skills.
func coerceObject(obj map[string]any, reasonMax int) Outcome {
	out := Outcome{
		Score:         coerceScore(obj["score"]),
		MatchedSkills: coerceSkills(obj["matched_skills"]),
		MissingSkills: coerceSkills(obj["missing_skills"]),
	}
	if r, ok := obj["reason"]; ok && r != nil {
		out.Reason = textx.Truncate(strings.TrimSpace(fmt.Sprintf("%v", r)), reasonMax)
	}
	return out
}

// coerceScore accepts numeric scores or strings like "85" / "85.4%".
// Truncates toward zero, clamps to [0,100]; anything else is 0.
func coerceScore(v any) int {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(x), "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	n := int(math.Trunc(f))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// coerceSkills keeps only string-typed list entries, trimmed.
func coerceSkills(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
