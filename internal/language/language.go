package language

import (
	"strings"

	"golang.org/x/text/language"
)

// Canonical normalizes a recognition language code to its canonical BCP-47
// form ("pl-pl" -> "pl-PL", "EN_us" -> "en-US"). Unparseable input is
// returned trimmed rather than rejected: the recognition provider performs
// its own validation and produces a clearer error than we could here.
func Canonical(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return ""
	}
	normalized := strings.ReplaceAll(trimmed, "_", "-")
	tag, err := language.Parse(normalized)
	if err != nil {
		return trimmed
	}
	return tag.String()
}

// Fallbacks canonicalizes a fallback list, dropping empties, duplicates, and
// any repeat of the primary language. Order is preserved.
func Fallbacks(primary string, codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	primary = Canonical(primary)
	seen := map[string]struct{}{primary: {}}
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		canonical := Canonical(code)
		if canonical == "" {
			continue
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// TryOrder returns the full recognition attempt order: the canonical primary
// language first, then the deduplicated fallbacks. The primary is always
// present even when the fallback list is empty.
func TryOrder(primary string, fallbacks []string) []string {
	return append([]string{Canonical(primary)}, Fallbacks(primary, fallbacks)...)
}
