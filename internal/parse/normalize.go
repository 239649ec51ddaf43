package parse

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/pkg/textx"
)

// Condense policies; see config.CondensePolicy.
const (
	CondenseAlways    = "always"
	CondenseWhenFound = "when-found"
	CondenseNever     = "never"
)

// summaryPrefixChars bounds the full-text prefix used when no summary
// heading was recognized.
const summaryPrefixChars = 350

// Condenser compresses a block of text to 1-3 sentences without inventing
// content. It is fallible; normalization falls back to raw text on error.
type Condenser interface {
	Condense(ctx domain.Context, text string) (string, error)
}

var resumeHeadings = []string{"SUMMARY", "PROFESSIONAL SUMMARY", "PROFILE", "SKILLS", "EXPERIENCE", "PROJECTS"}

var postingHeadings = []string{"DESCRIPTION", "RESPONSIBILITIES", "REQUIREMENTS", "TECH STACK", "TECHNOLOGIES"}

// Normalizer maps segmented blocks onto the canonical field set.
// The zero value normalizes without condensation.
type Normalizer struct {
	Condenser       Condenser
	Policy          string
	NarrativeBudget int
}

// Resume normalizes raw resume text into a CanonicalRecord. The record id
// is left empty; the caller assigns it.
func (n *Normalizer) Resume(ctx domain.Context, raw string) domain.CanonicalRecord {
	raw = textx.SanitizeText(raw)
	rec := domain.NewCanonicalRecord("", domain.KindResume)
	sections := Segment(raw, resumeHeadings)

	summaryBlock, summaryFound := firstSection(sections, "summary", "professional summary", "profile")
	if !summaryFound {
		summaryBlock = textx.Prefix(raw, summaryPrefixChars)
	}
	rec.Fields[domain.FieldSummary] = n.condenseSummary(ctx, summaryBlock)

	skillsBlock, skillsFound := sections["skills"]
	if !skillsFound {
		skillsBlock = raw
	}
	rec.RawSkills = ExtractSkills(skillsBlock)
	rec.Fields[domain.FieldSkills] = strings.Join(rec.RawSkills, ", ")

	expBlock, expFound := sections["experience"]
	rec.Fields[domain.FieldNarrativePrimary] = n.narrative(ctx, expBlock, expFound)
	projBlock, projFound := sections["projects"]
	rec.Fields[domain.FieldNarrativeSecondary] = n.narrative(ctx, projBlock, projFound)

	rec.Fields[domain.FieldFullText] = raw
	rec.ContentHash = hashFields(rec.Fields)
	return rec
}

// Posting normalizes raw job-posting text into a CanonicalRecord.
func (n *Normalizer) Posting(ctx domain.Context, raw string) domain.CanonicalRecord {
	raw = textx.SanitizeText(raw)
	rec := domain.NewCanonicalRecord("", domain.KindPosting)
	sections := Segment(raw, postingHeadings)

	descBlock, descFound := sections["description"]
	if !descFound {
		descBlock = textx.Prefix(raw, summaryPrefixChars)
	}
	rec.Fields[domain.FieldSummary] = n.condenseSummary(ctx, descBlock)

	skillsBlock, skillsFound := firstSection(sections, "requirements", "tech stack")
	if !skillsFound {
		skillsBlock = raw
	}
	rec.RawSkills = ExtractSkills(skillsBlock)
	rec.Fields[domain.FieldSkills] = strings.Join(rec.RawSkills, ", ")

	respBlock, respFound := sections["responsibilities"]
	rec.Fields[domain.FieldNarrativePrimary] = n.narrative(ctx, respBlock, respFound)
	techBlock, techFound := firstSection(sections, "tech stack", "technologies")
	rec.Fields[domain.FieldNarrativeSecondary] = n.narrative(ctx, techBlock, techFound)

	rec.Fields[domain.FieldFullText] = raw
	rec.ContentHash = hashFields(rec.Fields)
	return rec
}

// narrative reduces a block to bullet text, optionally condensed.
// A missing section yields the empty string.
func (n *Normalizer) narrative(ctx domain.Context, block string, found bool) string {
	if !found {
		return ""
	}
	bullets := Bullets(block)
	var text string
	if len(bullets) > 0 {
		text = strings.Join(bullets, ". ")
	} else {
		text = strings.TrimSpace(block)
	}
	if text == "" {
		return ""
	}
	if n.shouldCondense(text, found) {
		if condensed, err := n.Condenser.Condense(ctx, text); err == nil && condensed != "" {
			return condensed
		} else if err != nil {
			slog.Warn("narrative condensation failed, using raw bullets", slog.Any("error", err))
		}
	}
	return text
}

func (n *Normalizer) condenseSummary(ctx domain.Context, block string) string {
	text := textx.Prefix(block, summaryPrefixChars)
	if text == "" {
		return ""
	}
	if n.Condenser != nil && n.Policy == CondenseAlways {
		if condensed, err := n.Condenser.Condense(ctx, text); err == nil && condensed != "" {
			return condensed
		} else if err != nil {
			slog.Warn("summary condensation failed, using raw prefix", slog.Any("error", err))
		}
	}
	return text
}

func (n *Normalizer) shouldCondense(text string, sectionFound bool) bool {
	if n.Condenser == nil || n.Policy == CondenseNever || n.Policy == "" {
		return false
	}
	if n.Policy == CondenseAlways {
		return true
	}
	budget := n.NarrativeBudget
	if budget <= 0 {
		budget = 600
	}
	return sectionFound && len(text) > budget
}

func firstSection(sections map[string]string, names ...string) (string, bool) {
	for _, name := range names {
		if block, ok := sections[name]; ok {
			return block, true
		}
	}
	return "", false
}

// hashFields produces a stable content hash over the canonical fields,
// used to guard cached vectors against stale record edits.
func hashFields(fields map[domain.Field]string) string {
	h := sha256.New()
	for _, f := range domain.CanonicalFields() {
		h.Write([]byte(fields[f]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
