// Package parse turns raw document text into canonical field records.
//
// It segments a document on recognized headings, extracts bullet lines
// and comma-separated skill lists, and normalizes the result into the
// fixed canonical field set shared by resumes and postings.
package parse

import (
	"regexp"
	"sort"
	"strings"
)

// Segment splits raw text into blocks keyed by lower-cased heading name.
// A heading matches at start-of-line, followed by an optional colon and a
// newline. Each block runs to the next recognized heading or end of text.
// Headings not present contribute no entry; with no match at all the
// result is empty and callers fall back to a prefix of the full text.
func Segment(text string, headings []string) map[string]string {
	out := map[string]string{}
	if len(headings) == 0 || strings.TrimSpace(text) == "" {
		return out
	}
	quoted := make([]string, len(headings))
	for i, h := range headings {
		quoted[i] = regexp.QuoteMeta(h)
	}
	re := regexp.MustCompile(`(?i)(?:^|\n)(` + strings.Join(quoted, "|") + `)[: \t]*\n`)
	matches := re.FindAllStringSubmatchIndex(text, -1)
	for i, m := range matches {
		name := strings.ToLower(text[m[2]:m[3]])
		start := m[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		out[name] = strings.TrimSpace(text[start:end])
	}
	return out
}

// Bullets extracts bullet lines from a block. A line is a bullet when it
// begins with "-", "*" or "•" after trimming; the marker and surrounding
// whitespace are stripped.
func Bullets(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "-") || strings.HasPrefix(l, "*") || strings.HasPrefix(l, "•") {
			item := strings.TrimSpace(strings.TrimLeft(l, "-*• \t"))
			if item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

var skillCharClass = regexp.MustCompile(`^[A-Za-z0-9#+.\- ]+$`)

// ExtractSkills pulls a skill list out of a skills-labeled block. Lines
// containing a comma are split on commas; fragments are trimmed, filtered
// to a restricted character class, deduplicated preserving first-seen
// order, then sorted for deterministic comparison.
func ExtractSkills(block string) []string {
	var candidates []string
	for _, line := range strings.Split(block, "\n") {
		if !strings.Contains(line, ",") {
			continue
		}
		for _, frag := range strings.Split(line, ",") {
			if s := strings.TrimSpace(frag); s != "" {
				candidates = append(candidates, s)
			}
		}
	}
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if !skillCharClass.MatchString(s) {
			continue
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
