package lightspeed

import (
	"regexp"
	"strings"
)

var (
	tagPattern = regexp.MustCompile(`\[(\w+):([^\]]+)\]`)
	// a tag together with the spaces and tabs around it
	paddedTagPattern = regexp.MustCompile(`[ \t]*\[(\w+):([^\]]+)\][ \t]*`)
	spaceRun         = regexp.MustCompile(`[ \t]+`)
	nonSlugRun       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Tags holds the [key:value] pairs embedded in an item description. Keys are
// kept verbatim; later duplicates win.
type Tags map[string]string

// ParseTags extracts every bracket tag from a description.
func ParseTags(description string) Tags {
	tags := Tags{}
	for _, m := range tagPattern.FindAllStringSubmatch(description, -1) {
		tags[m[1]] = strings.TrimSpace(m[2])
	}
	return tags
}

// Get returns the tag value, or "" when absent.
func (t Tags) Get(key string) string {
	return t[key]
}

// Flag reports whether the tag is exactly "true".
func (t Tags) Flag(key string) bool {
	return t[key] == "true"
}

// StripTags removes bracket tags and their surrounding horizontal whitespace,
// collapses repeated spaces on each line and trims blank edges.
func StripTags(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = paddedTagPattern.ReplaceAllString(line, " ")
		line = spaceRun.ReplaceAllString(line, " ")
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ProductName is the first line of the description without tags. A
// description whose first line is only tags falls back to the whole
// stripped text.
func ProductName(description string) string {
	first, _, _ := strings.Cut(description, "\n")
	if name := StripTags(first); name != "" {
		return name
	}
	return StripTags(description)
}

// CleanDescription drops the first line (the name) when there is a body
// below it, then strips tags.
func CleanDescription(description string) string {
	first, rest, found := strings.Cut(description, "\n")
	if found {
		if body := StripTags(rest); body != "" {
			return body
		}
	}
	return StripTags(first)
}

// Slugify lowercases s and collapses every non-alphanumeric run into a single
// hyphen.
func Slugify(s string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}
