package export

import (
	"strings"
	"unicode/utf8"

	"roadmapbp/pkg/markdown"
)

const ruleWidth = 60

// PlainText strips markdown syntax from md. Headings of level 1 and 2 are
// upper-cased and underlined, bullets become indented "•" items and tables are
// laid out in padded columns.
func PlainText(md string) string {
	var b strings.Builder
	blocks := markdown.Blocks(md)
	for i, block := range blocks {
		// consecutive list items stay together
		if i > 0 && (block.Kind != markdown.BlockBullet || blocks[i-1].Kind != markdown.BlockBullet) {
			b.WriteString("\n")
		}
		switch block.Kind {
		case markdown.BlockHeading:
			text := block.Text
			if block.Level <= 2 {
				text = strings.ToUpper(text)
				b.WriteString(text + "\n")
				b.WriteString(strings.Repeat(underline(block.Level), utf8.RuneCountInString(text)) + "\n")
			} else {
				b.WriteString(text + "\n")
			}
		case markdown.BlockBullet:
			b.WriteString(strings.Repeat("  ", block.Level) + "• " + block.Text + "\n")
		case markdown.BlockTable:
			writeTable(&b, block.Table)
		case markdown.BlockRule:
			b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
		case markdown.BlockCode:
			for _, line := range strings.Split(block.Text, "\n") {
				b.WriteString("    " + line + "\n")
			}
		case markdown.BlockParagraph:
			b.WriteString(block.Text + "\n")
		}
	}
	return b.String()
}

func underline(level int) string {
	if level == 1 {
		return "="
	}
	return "-"
}

func writeTable(b *strings.Builder, t *markdown.Table) {
	widths := make([]int, len(t.Headers))
	measure := func(cells []string) {
		for i, c := range cells {
			if i < len(widths) {
				widths[i] = max(widths[i], utf8.RuneCountInString(c))
			}
		}
	}
	measure(t.Headers)
	for _, row := range t.Rows {
		measure(row)
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			var c string
			if i < len(cells) {
				c = cells[i]
			}
			parts[i] = c + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c))
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " ") + "\n")
	}

	writeRow(t.Headers)
	seps := make([]string, len(widths))
	for i, w := range widths {
		seps[i] = strings.Repeat("-", max(w, 1))
	}
	b.WriteString(strings.Join(seps, "  ") + "\n")
	for _, row := range t.Rows {
		writeRow(row)
	}
}
