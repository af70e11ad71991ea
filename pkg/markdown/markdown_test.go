package markdown

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePhase = `## Phase 2: Build

### Executive Summary

We build the core app.
It ships to beta testers.

#### Note

Nested detail stays in the summary.

### Timeline

* **Start Date**: 2031-01-01

---

### Success Metrics

| Metric | Target |
|--------|--------|
| DAU | 1,000 |
| Crash rate | < 1% | extra |

### Next Steps

Launch.
`

func TestExtractSectionExample(t *testing.T) {
	assert.Equal(t, "Foo bar.", ExtractSection("### Executive Summary\nFoo bar.\n### Timeline", "Executive Summary"))
	assert.Equal(t, "", ExtractSection("## Overview\nNo summary here.", "Executive Summary"))
	assert.Equal(t, "", ExtractSection("", "Executive Summary"))
}

func TestExtractSectionStopsAtEqualOrHigherLevel(t *testing.T) {
	got := ExtractSection(samplePhase, "Executive Summary")
	assert.Equal(t, "We build the core app.\nIt ships to beta testers.\n\n#### Note\n\nNested detail stays in the summary.", got)

	assert.Equal(t, "Launch.", ExtractSection(samplePhase, "next steps"))

	// A lower-level heading is terminated by a higher one.
	md := "#### Deep\ninside\n## Top\nafter"
	assert.Equal(t, "inside", ExtractSection(md, "Deep"))
}

func TestExtractSectionNameMatching(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{"case insensitive", "### EXECUTIVE SUMMARY\nx", "x"},
		{"bold heading", "### **Executive Summary**\nx", "x"},
		{"trailing colon", "### Executive Summary:\nx", "x"},
		{"closing hashes", "### Executive Summary ###\nx", "x"},
		{"any level", "# Executive Summary\nx\n## Sub\ny", "x\n## Sub\ny"},
		{"first match wins", "### Executive Summary\nfirst\n### Executive Summary\nsecond", "first"},
		{"requires space after hashes", "###Executive Summary\nx", ""},
		{"ignores fenced code", "```\n### Executive Summary\n```\nx", ""},
		{"end of document", "### Executive Summary\n\n  last words  \n", "last words"},
		{"crlf", "### Executive Summary\r\nFoo\r\n### Timeline", "Foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSection(tt.md, "Executive Summary"))
		})
	}
}

func TestHeadingsAndSections(t *testing.T) {
	hs := Headings(samplePhase)
	require.Len(t, hs, 6)
	assert.Equal(t, Heading{Text: "Phase 2: Build", Level: 2, Line: 0}, hs[0])
	assert.Equal(t, 4, hs[2].Level)

	secs := Sections(samplePhase)
	require.Len(t, secs, 6)
	assert.Contains(t, secs[0].Body, "### Executive Summary", "level-2 section spans its children")
}

func TestBlockBullets(t *testing.T) {
	md := "- one\n- **two**\n  - nested `code`\n\n1. three\n2. four\n\nplain"
	assert.Equal(t, []Block{
		{Kind: BlockBullet, Level: 0, Text: "one"},
		{Kind: BlockBullet, Level: 0, Text: "two"},
		{Kind: BlockBullet, Level: 1, Text: "nested code"},
		{Kind: BlockBullet, Level: 0, Text: "three"},
		{Kind: BlockBullet, Level: 0, Text: "four"},
		{Kind: BlockParagraph, Text: "plain"},
	}, Blocks(md))
}

func tablesIn(md string) []Table {
	var out []Table
	for _, b := range Blocks(md) {
		if b.Kind == BlockTable {
			out = append(out, *b.Table)
		}
	}
	return out
}

func TestBlockTables(t *testing.T) {
	tables := tablesIn(samplePhase)
	require.Len(t, tables, 1)
	assert.Equal(t, []string{"Metric", "Target"}, tables[0].Headers)
	assert.Equal(t, [][]string{{"DAU", "1,000"}, {"Crash rate", "< 1%"}}, tables[0].Rows)

	short := tablesIn("a | b | c\n---|---|---\n1 | 2\n")
	require.Len(t, short, 1)
	assert.Equal(t, []string{"1", "2", ""}, short[0].Rows[0])

	styled := tablesIn("| **Owner** | [Docs](https://example.com) |\n|---|---|\n| `pm` | x |\n")
	require.Len(t, styled, 1)
	assert.Equal(t, []string{"Owner", "Docs"}, styled[0].Headers)
	assert.Equal(t, [][]string{{"pm", "x"}}, styled[0].Rows)
}

func TestBlocksTolerateArbitraryInput(t *testing.T) {
	md := "Intro line\ncontinues here\n\n---\n```go\nx := 1\n```\n##### Odd level\n| not | a table\nplain"
	blocks := Blocks(md)

	kinds := make([]BlockKind, 0, len(blocks))
	for _, b := range blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []BlockKind{BlockParagraph, BlockRule, BlockCode, BlockHeading, BlockParagraph}, kinds)
	assert.Equal(t, "Intro line continues here", blocks[0].Text)
	assert.Equal(t, "x := 1", blocks[2].Text)
	assert.Equal(t, 5, blocks[3].Level)
	assert.Equal(t, "| not | a table plain", blocks[4].Text)

	assert.NotPanics(t, func() { Blocks("|\n|---|\n") })
	assert.NotPanics(t, func() { Blocks("```\nunterminated") })
}

func TestBlockInlineText(t *testing.T) {
	blocks := Blocks("> quoted **text**\n> more\n\nescaped \\*stars\\* and <https://example.com>")
	require.Len(t, blocks, 2)
	assert.Equal(t, "quoted text more", blocks[0].Text)
	assert.Equal(t, "escaped *stars* and https://example.com", blocks[1].Text)
}

func TestBlocksRandomInputNeverPanics(t *testing.T) {
	pieces := []string{
		"#", "## ", "- ", "* ", "1. ", "  ", "\t", "|", "---", "```", "~~~", ">", "**", "_", "`",
		"[", "](", ")", "<", ">", "\\", "\n", "\n\n", "\r\n", "word", "•", "é", ":-:",
	}
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 5000; i++ {
		var b strings.Builder
		for n := rng.IntN(40); n > 0; n-- {
			b.WriteString(pieces[rng.IntN(len(pieces))])
		}
		md := b.String()
		require.NotPanics(t, func() { Blocks(md) }, "input %q", md)
	}
}

func TestStripInline(t *testing.T) {
	assert.Equal(t, "Start Date: 2031", StripInline("**Start Date**: 2031"))
	assert.Equal(t, "see docs", StripInline("see [docs](http://x)"))
	assert.Equal(t, "emph", StripInline("*emph*"))
	assert.Equal(t, "code", StripInline("`code`"))
}
