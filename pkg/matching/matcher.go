// Package matching provides the text primitives intent resolution is built
// on: substring containment, regex-alternation matching and similarity
// scoring over user utterances.
package matching

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"umbot/go-core/pkg/models"
)

// Contains reports whether haystack contains the single needle, either as a
// plain substring or as a regex fragment.
func Contains(needle, haystack string, asPattern bool) bool {
	return ContainsAny([]string{needle}, haystack, asPattern)
}

// ContainsAny reports whether haystack matches any of the needles.
//
// In substring mode the test is case-sensitive containment, OR-ed across
// needles. In pattern mode the needles are regex fragments joined into a
// single case-insensitive multiline alternation and compiled once per call;
// an uncompilable alternation reports false. Empty input never matches.
func ContainsAny(needles []string, haystack string, asPattern bool) bool {
	if haystack == "" || len(needles) == 0 {
		return false
	}
	if !asPattern {
		for _, needle := range needles {
			if needle == "" {
				continue
			}
			if strings.Contains(haystack, needle) {
				return true
			}
		}
		return false
	}
	re, err := compileAlternation(needles)
	if err != nil || re == nil {
		return false
	}
	return re.MatchString(haystack)
}

// compileAlternation parenthesizes each fragment and joins them with "|".
// RE2 treats \b as an ASCII word boundary, which breaks whole-word Cyrillic
// triggers, so \b is rewritten to a Unicode-aware boundary alternation first.
func compileAlternation(fragments []string) (*regexp.Regexp, error) {
	parts := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if fragment == "" {
			continue
		}
		parts = append(parts, "("+rewriteWordBoundaries(fragment)+")")
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return regexp.Compile("(?im)" + strings.Join(parts, "|"))
}

const (
	boundaryBefore = `(?:^|[^\p{L}\p{N}_])`
	boundaryAfter  = `(?:$|[^\p{L}\p{N}_])`
)

func rewriteWordBoundaries(fragment string) string {
	var b strings.Builder
	atStart := true
	prevWordChar := false
	for i := 0; i < len(fragment); i++ {
		if fragment[i] == '\\' && i+1 < len(fragment) {
			if fragment[i+1] == 'b' {
				// The rewritten boundary consumes one character, so it is
				// emitted only where the fragment does not already supply
				// the adjacent non-word literal.
				switch {
				case atStart:
					b.WriteString(boundaryBefore)
				case prevWordChar:
					b.WriteString(boundaryAfter)
				}
				atStart = false
				prevWordChar = false
				i++
				continue
			}
			b.WriteByte(fragment[i])
			b.WriteByte(fragment[i+1])
			atStart = false
			prevWordChar = true
			i++
			continue
		}
		c := fragment[i]
		b.WriteByte(c)
		atStart = false
		prevWordChar = c == '_' || c >= '0' && c <= '9' ||
			c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= utf8.RuneSelf
	}
	return b.String()
}

// Fixed whole-word Russian fragments for quick yes/no detection.
var (
	agreementFragments = []string{
		`\bда\b`, `\bконечно\b`, `\bсогласен\b`, `\bсогласна\b`,
		`\bподтверждаю\b`, `\bхорошо\b`, `\bдавай\b`, `\bок\b`,
		`\bокей\b`, `\bага\b`, `\bплюс\b`,
	}
	refusalFragments = []string{
		`\bнет\b`, `\bне надо\b`, `\bотмена\b`, `\bотменить\b`,
		`\bстоп\b`, `\bхватит\b`, `\bминус\b`,
	}
)

// Agreement reports whether the text is an affirmative reply.
func Agreement(text string) bool {
	return ContainsAny(agreementFragments, text, true)
}

// Refusal reports whether the text is a negative reply.
func Refusal(text string) bool {
	return ContainsAny(refusalFragments, text, true)
}

// Similarity scores candidates against reference and returns the best one.
// Status is set when the best percentage reaches thresholdPercent. An exact
// candidate short-circuits to 100. Percent is zero when nothing came close,
// never omitted.
func Similarity(reference string, candidates []string, thresholdPercent int) models.SimilarityResult {
	result := models.SimilarityResult{Index: -1}
	reference = models.NormalizeCommand(reference)
	if reference == "" || len(candidates) == 0 {
		return result
	}
	for i, candidate := range candidates {
		normalized := models.NormalizeCommand(candidate)
		if normalized == "" {
			continue
		}
		if normalized == reference {
			return models.SimilarityResult{Status: true, Percent: 100, Text: normalized, Index: i}
		}
		percent := similarityPercent(reference, normalized)
		if percent > result.Percent {
			result.Percent = percent
			result.Text = normalized
			result.Index = i
		}
	}
	result.Status = result.Percent >= thresholdPercent && result.Index >= 0
	return result
}

func similarityPercent(a, b string) int {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	percent := 100 * (longest - distance) / longest
	if percent < 0 {
		return 0
	}
	return percent
}
