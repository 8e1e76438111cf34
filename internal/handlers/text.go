package handlers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	issueKeyRe         = regexp.MustCompile(`(?:/|'|"|\[|\s|^)([a-zA-Z]+-\d+)`)
	bracketedKeyRe     = regexp.MustCompile(`\[([a-zA-Z]+-\d+)\]`)
	closesKeyRe        = regexp.MustCompile(`Closes ([a-zA-Z]+-\d+)`)
	resolveKeyRe       = regexp.MustCompile(`Resolve ([a-zA-Z]+-\d+)`)
	newlinesRe         = regexp.MustCompile(`\n+`)
	notesHeaderRe      = regexp.MustCompile(`\[(\d+)\]:\s*`)
	notesBlockBoundary = "\n["
)

// ExtractIssueKeys returns the distinct issue keys (e.g. ABC-12) mentioned in
// text, sorted.
func ExtractIssueKeys(text string) []string {
	set := map[string]struct{}{}
	for _, m := range issueKeyRe.FindAllStringSubmatch(text, -1) {
		set[m[1]] = struct{}{}
	}
	return sortedKeys(set)
}

// unionKeys merges key lists, dropping duplicates.
func unionKeys(lists ...[]string) []string {
	set := map[string]struct{}{}
	for _, l := range lists {
		for _, k := range l {
			set[k] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// removeBracketsAroundIssueKeys strips [ABC-1] brackets, which Jira renders
// as links.
func removeBracketsAroundIssueKeys(text string) string {
	return bracketedKeyRe.ReplaceAllString(text, "$1")
}

// SanitizeDescription drops "Closes ABC-1" boilerplate and blank lines.
func SanitizeDescription(description string) string {
	out := closesKeyRe.ReplaceAllString(description, "")
	out = newlinesRe.ReplaceAllString(out, "\n")
	return removeBracketsAroundIssueKeys(out)
}

// SanitizeTitle turns "Resolve ABC-1" into "ABC-1".
func SanitizeTitle(title string) string {
	return removeBracketsAroundIssueKeys(resolveKeyRe.ReplaceAllString(title, "$1"))
}

// stateSymbol is the Jira wiki emoticon for a merge request state.
func stateSymbol(merged, closed bool) string {
	switch {
	case merged:
		return "(/)"
	case closed:
		return "(x)"
	}
	return "(?)"
}

// CreateResolutionNotes renders the block describing one merge request.
func CreateResolutionNotes(merged, closed bool, id, title, url, description string) string {
	notes := fmt.Sprintf("[%s]: [%s|%s] %s\n", id, title, url, stateSymbol(merged, closed))
	if !closed && description != "" {
		notes += description + "\n\n"
	}
	return notes
}

// notesBlock is one "[id]: text" entry of a resolution notes field.
type notesBlock struct {
	ID   string
	Text string
}

// splitResolutionNotes parses a resolution notes field into its blocks. A
// block's text runs up to the next line starting with '[' or the end.
func splitResolutionNotes(notes string) []notesBlock {
	var out []notesBlock
	pos := 0
	for pos < len(notes) {
		loc := notesHeaderRe.FindStringSubmatchIndex(notes[pos:])
		if loc == nil {
			break
		}
		id := notes[pos+loc[2] : pos+loc[3]]
		start := pos + loc[1]
		end := len(notes)
		if i := strings.Index(notes[start:], notesBlockBoundary); i >= 0 {
			end = start + i
		}
		out = append(out, notesBlock{ID: id, Text: notes[start:end]})
		pos = end
	}
	return out
}

// UpdateResolutionNotes replaces the block for mergeRequestID in notes with
// mrNotes, appending it when absent. Text that carries no blocks is kept and
// mrNotes is appended after it.
func UpdateResolutionNotes(notes, mergeRequestID, mrNotes string) string {
	if notes == "" {
		return mrNotes
	}
	blocks := splitResolutionNotes(notes)
	if len(blocks) == 0 {
		return strings.TrimRight(notes, "\n") + "\n" + mrNotes
	}
	var b strings.Builder
	matched := false
	for _, blk := range blocks {
		if blk.ID == mergeRequestID {
			matched = true
			b.WriteString(mrNotes)
			continue
		}
		fmt.Fprintf(&b, "[%s]: %s\n", blk.ID, blk.Text)
	}
	if !matched {
		b.WriteString(mrNotes)
	}
	return b.String()
}
