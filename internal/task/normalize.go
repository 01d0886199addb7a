package task

import (
	"regexp"
	"strings"
	"unicode"
)

// UntitledTitle replaces titles that are empty after normalization.
const UntitledTitle = "Untitled task"

var (
	htmlTagPattern     = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	mdLinkPattern      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdPrefixPattern    = regexp.MustCompile(`^\s*(?:(?:#{1,6}|[-*+>]|\d+[.)])\s+)+`)
	mdEmphasisReplacer = strings.NewReplacer("**", "", "__", "", "~~", "", "`", "")
)

// Normalize applies field normalization in place. It is idempotent:
// normalizing an already-normalized task leaves it unchanged.
func Normalize(t *Task) {
	title, overflow := NormalizeTitle(t.Title)
	t.Title = title

	desc := strings.TrimSpace(t.Description)
	if overflow != "" {
		if desc != "" {
			desc = overflow + "\n\n" + desc
		} else {
			desc = overflow
		}
	}
	t.Description = desc

	if !IsValidStatus(t.Status) {
		t.Status, _ = ParseStatus(string(t.Status))
	}
	if !IsValidPriority(t.Priority) {
		t.Priority, _ = ParsePriority(string(t.Priority))
	}

	t.StartDate = NormalizeDate(t.StartDate)
	t.EndDate = NormalizeDate(t.EndDate)
	if t.StartDate != "" && t.EndDate != "" && t.EndDate < t.StartDate {
		t.EndDate = AddDays(t.StartDate, 1)
	}

	t.Tags = normalizeTags(t.Tags)
	t.DependencyIDs = normalizeIDs(t.DependencyIDs, t.ID)
	t.AttachmentIDs = normalizeIDs(t.AttachmentIDs, "")
}

// NormalizeTitle strips markup and whitespace noise from a title and splits it
// when it exceeds MaxTitleLength. The returned overflow is the text that did not
// fit; callers move it into the description so nothing is dropped.
func NormalizeTitle(raw string) (title, overflow string) {
	s := StripMarkup(raw)
	if s == "" {
		return UntitledTitle, ""
	}

	runes := []rune(s)
	if len(runes) <= MaxTitleLength {
		return s, ""
	}

	cut := sentenceBoundary(runes)
	if cut > 0 {
		return strings.TrimSpace(string(runes[:cut])), strings.TrimSpace(string(runes[cut:]))
	}

	if sp := lastSpace(runes); sp > 0 {
		return strings.TrimSpace(string(runes[:sp])), strings.TrimSpace(string(runes[sp+1:]))
	}

	return string(runes[:MaxTitleLength]), strings.TrimSpace(string(runes[MaxTitleLength:]))
}

// StripMarkup removes markdown and HTML tokens and collapses whitespace.
// Removing one token can expose another, so it repeats until nothing changes.
// stripOnce never lengthens its input, so the loop terminates.
func StripMarkup(s string) string {
	for {
		next := stripOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func stripOnce(s string) string {
	s = mdEmphasisReplacer.Replace(s)
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = mdLinkPattern.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), " ")
	return mdPrefixPattern.ReplaceAllString(s, "")
}

// sentenceBoundary returns the rune index just past the last sentence-ending
// punctuation that fits within MaxTitleLength, or 0 if there is none.
func sentenceBoundary(runes []rune) int {
	limit := min(len(runes), MaxTitleLength)
	for i := limit - 1; i > 0; i-- {
		switch runes[i] {
		case '.', '!', '?', ';':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				return i + 1
			}
		}
	}
	return 0
}

// lastSpace returns the index of the last space at or before MaxTitleLength.
func lastSpace(runes []rune) int {
	for i := min(len(runes)-1, MaxTitleLength); i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return 0
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" || containsFold(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeIDs(ids []string, self string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
