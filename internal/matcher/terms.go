package matcher

import (
	"strings"
)

// delimiterGroups are the characters media server search tokenizers choke on, in the order they are split.
// Quotes are handled before double quotes, and both before dashes.
var delimiterGroups = []string{
	"'‘’",
	"\"“”",
	"-–—",
}

// SearchTerm reduces s to the longest run of text free of quotes and dashes.
//
// Each delimiter group is applied in turn: when s contains one of the group's characters it is split on
// them and the longest trimmed segment is kept (the first one on ties). "Home - Live" becomes "Home" and
// "Don't Stop" becomes "t Stop". Text without delimiters is only trimmed.
func SearchTerm(s string) string {
	s = strings.TrimSpace(s)
	for _, group := range delimiterGroups {
		if !strings.ContainsAny(s, group) {
			continue
		}
		segments := strings.FieldsFunc(s, func(r rune) bool {
			return strings.ContainsRune(group, r)
		})
		s = longest(segments)
	}
	return s
}

func longest(segments []string) string {
	best := ""
	for _, seg := range segments {
		if seg = strings.TrimSpace(seg); len([]rune(seg)) > len([]rune(best)) {
			best = seg
		}
	}
	return best
}

// Query is one search attempt at a given specificity.
type Query struct {
	Level string
	Term  string
}

// Queries returns the searches for a track from most to least specific: title with album, title with
// artist, then title alone. Levels whose extra field is empty, or whose term repeats an earlier level,
// are left out; the title-only level is always present.
func Queries(title, artist, album string) []Query {
	title = SearchTerm(title)
	artist = SearchTerm(artist)
	album = strings.TrimSpace(album)

	levels := []Query{
		{Level: "title+album", Term: join(title, album)},
		{Level: "title+artist", Term: join(title, artist)},
		{Level: "title", Term: title},
	}

	queries := make([]Query, 0, len(levels))
	seen := make(map[string]bool, len(levels))
	for i, q := range levels {
		loosest := i == len(levels)-1
		if !loosest && (q.Term == title || seen[q.Term]) {
			continue
		}
		seen[q.Term] = true
		queries = append(queries, q)
	}
	return queries
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
