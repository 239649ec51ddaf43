package evaluate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/pkg/textx"
)

var (
	fenceOpenRe   = regexp.MustCompile("(?i)```[a-z]*")
	parenRe       = regexp.MustCompile(`\([^)]*\)`)
	lineCommentRe = regexp.MustCompile(`//[^\n]*`)
	hashCommentRe = regexp.MustCompile(`#[^\n]*`)
)

// Sanitize runs the multi-stage cleanup pipeline over raw evaluator
// output: strip code fences, extract the first balanced brace block,
// drop parenthetical asides and line comments, collapse newlines.
// Each stage is total except brace extraction, which fails when no
// JSON object is present at all.
func Sanitize(raw string) (string, error) {
	s := stripCodeFences(raw)
	s, err := extractBraced(s)
	if err != nil {
		return "", err
	}
	s = stripAsides(s)
	return textx.CollapseNewlines(s), nil
}

// stripCodeFences removes Markdown code-fence delimiters such as ```json.
func stripCodeFences(s string) string {
	return strings.TrimSpace(fenceOpenRe.ReplaceAllString(s, ""))
}

// extractBraced returns the first balanced {...} substring, tracking
// brace depth so trailing prose after the object is tolerated. It is
// not first-{-to-last-}: a stray closing brace in prose would break that.
func extractBraced(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("op=evaluate.extractBraced: %w: no JSON object in output", domain.ErrSchemaInvalid)
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("op=evaluate.extractBraced: %w: unbalanced braces", domain.ErrSchemaInvalid)
}

// stripAsides removes parenthetical asides and // or # line comments.
func stripAsides(s string) string {
	s = parenRe.ReplaceAllString(s, "")
	s = lineCommentRe.ReplaceAllString(s, "")
	s = hashCommentRe.ReplaceAllString(s, "")
	return s
}
