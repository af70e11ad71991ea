package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// BlockKind classifies a Block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockBullet
	BlockTable
	BlockRule
	BlockCode
)

//nolint:gochecknoglobals // parser is safe for concurrent use
var blockParser parser.Parser = goldmark.New(goldmark.WithExtensions(extension.Table)).Parser()

// Table is a pipe-delimited table. Cell text has inline markup removed.
type Table struct {
	Headers []string
	Rows    [][]string // Each row is padded or truncated to len(Headers)
}

// Block is one display unit of a document. Text is plain: emphasis, code
// ticks and link targets are gone.
type Block struct {
	Table *Table // BlockTable only
	Text  string
	Kind  BlockKind
	Level int // Heading level, or bullet nesting depth starting at 0
}

// Blocks parses md as CommonMark with pipe tables and flattens it into
// display blocks. Block quotes contribute their content; list items become
// BlockBullet entries followed by anything nested inside them.
func Blocks(md string) []Block {
	src := []byte(md)
	doc := blockParser.Parse(text.NewReader(src))

	var out []Block
	collectChildren(doc, src, 0, &out)
	return out
}

func collectChildren(parent ast.Node, src []byte, depth int, out *[]Block) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		collect(n, src, depth, out)
	}
}

func collect(n ast.Node, src []byte, depth int, out *[]Block) {
	switch node := n.(type) {
	case *ast.Heading:
		*out = append(*out, Block{Kind: BlockHeading, Level: node.Level, Text: inlineText(node, src)})
	case *ast.Paragraph, *ast.TextBlock:
		if t := inlineText(node, src); t != "" {
			*out = append(*out, Block{Kind: BlockParagraph, Text: t})
		}
	case *ast.List:
		collectList(node, src, depth, out)
	case *ast.ThematicBreak:
		*out = append(*out, Block{Kind: BlockRule})
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		*out = append(*out, Block{Kind: BlockCode, Text: strings.TrimSuffix(rawLines(node, src), "\n")})
	case *ast.HTMLBlock:
		if t := strings.TrimSpace(rawLines(node, src)); t != "" {
			*out = append(*out, Block{Kind: BlockParagraph, Text: t})
		}
	case *east.Table:
		table := tableFrom(node, src)
		*out = append(*out, Block{Kind: BlockTable, Table: &table})
	default:
		collectChildren(n, src, depth, out)
	}
}

// collectList emits one bullet per item. The item's own text is its leading
// paragraphs; nested lists and other blocks follow one level deeper.
func collectList(list *ast.List, src []byte, depth int, out *[]Block) {
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		child := item.FirstChild()
		for ; child != nil; child = child.NextSibling() {
			if child.Kind() != ast.KindParagraph && child.Kind() != ast.KindTextBlock {
				break
			}
			parts = append(parts, inlineText(child, src))
		}
		*out = append(*out, Block{Kind: BlockBullet, Level: depth, Text: strings.Join(parts, " ")})
		for ; child != nil; child = child.NextSibling() {
			collect(child, src, depth+1, out)
		}
	}
}

func tableFrom(node *east.Table, src []byte) Table {
	var table Table
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		if _, ok := row.(*east.TableHeader); ok {
			table.Headers = cells
			continue
		}
		padded := make([]string, len(table.Headers))
		copy(padded, cells)
		table.Rows = append(table.Rows, padded)
	}
	return table
}

func rawLines(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// inlineText concatenates the text under n. Soft and hard breaks become a
// single space.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.CodeSpan:
			for c := v.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.Write(t.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(util.UnescapePunctuations(v.Segment.Value(src)))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
