// Package markdown parses the loosely structured markdown produced for roadmap phases.
//
// Grammar, line oriented:
//
//	heading   = 1*6"#" SP text [SP 1*"#"]
//	section   = heading body
//	body      = every line up to the next heading whose level is <= the section's level
//
// Lines inside ``` or ~~~ fences are never headings. Anything unrecognized is body
// text; no input is rejected. Display blocks (Blocks) come from a CommonMark
// parse with pipe tables instead.
package markdown

import (
	"regexp"
	"strings"
)

//nolint:gochecknoglobals // compiled patterns
var (
	headingPattern = regexp.MustCompile(`^\s{0,3}(#{1,6})[ \t]+(.+?)(?:[ \t]+#+)?[ \t]*$`)
	fencePattern   = regexp.MustCompile("^\\s{0,3}(```|~~~)")
	inlinePattern  = regexp.MustCompile("\\*\\*|__|`|~~")
	linkPattern    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)

// Heading is one ATX heading.
type Heading struct {
	Text  string // Trimmed heading text, inline markup kept
	Level int    // Number of leading '#'
	Line  int    // 0-based line index
}

// Section is a heading plus its body.
type Section struct {
	Body string // Trimmed body text
	Heading
}

func splitLines(md string) []string {
	return strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
}

func parseHeading(line string) (Heading, bool) {
	m := headingPattern.FindStringSubmatch(line)
	if m == nil {
		return Heading{}, false
	}
	text := strings.TrimSpace(m[2])
	if text == "" {
		return Heading{}, false
	}
	return Heading{Level: len(m[1]), Text: text}, true
}

// Headings returns every heading in document order.
func Headings(md string) []Heading {
	var out []Heading
	inFence := false
	for i, line := range splitLines(md) {
		if fencePattern.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if h, ok := parseHeading(line); ok {
			h.Line = i
			out = append(out, h)
		}
	}
	return out
}

// Sections splits md into one Section per heading.
func Sections(md string) []Section {
	lines := splitLines(md)
	headings := Headings(md)
	sections := make([]Section, 0, len(headings))

	for i, h := range headings {
		end := len(lines)
		for _, next := range headings[i+1:] {
			if next.Level <= h.Level {
				end = next.Line
				break
			}
		}
		body := strings.Join(lines[h.Line+1:end], "\n")
		sections = append(sections, Section{Heading: h, Body: strings.TrimSpace(body)})
	}
	return sections
}

// NormalizeName reduces heading text for comparison: inline markup and a
// trailing colon are removed, whitespace is collapsed, and case is folded.
func NormalizeName(s string) string {
	s = StripInline(s)
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FindSection returns the first section whose heading matches name.
func FindSection(md, name string) (Section, bool) {
	want := NormalizeName(name)
	for _, s := range Sections(md) {
		if NormalizeName(s.Text) == want {
			return s, true
		}
	}
	return Section{}, false
}

// ExtractSection returns the trimmed body of the first heading matching name,
// or "" when no heading matches.
//
//	ExtractSection("### Executive Summary\nFoo bar.\n### Timeline", "Executive Summary") == "Foo bar."
func ExtractSection(md, name string) string {
	s, ok := FindSection(md, name)
	if !ok {
		return ""
	}
	return s.Body
}

// StripInline removes emphasis, code ticks and link targets, leaving text.
func StripInline(s string) string {
	s = linkPattern.ReplaceAllString(s, "$1")
	s = inlinePattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '*' || s[0] == '_') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return s
}
