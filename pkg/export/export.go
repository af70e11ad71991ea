// Package export turns generated roadmaps into downloadable documents.
//
// Phase markdown is treated as opaque text: any heading level, bullet style
// or pipe table the model produced is accepted, and nothing is rejected.
package export

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"roadmapbp/pkg/roadmap"
)

// Format is an export file format.
type Format string

const (
	// FormatMarkdown exports the assembled markdown document.
	FormatMarkdown Format = "md"
	// FormatText exports plain text with markdown syntax removed.
	FormatText Format = "txt"
)

//go:embed document.tpl.md
var documentTemplate string

//nolint:gochecknoglobals // parsed once
var document = template.Must(template.New("document").Parse(documentTemplate))

// ParseFormat accepts "md", "markdown", "txt" and "text", case-insensitively.
// An empty string selects markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want md or txt)", s)
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

type documentData struct {
	Input       string
	ID          string
	GeneratedAt string
	Phases      []string
}

// Markdown assembles every rendered phase into one document, phases separated
// by horizontal rules. A zero generatedAt omits the timestamp line.
func Markdown(result *roadmap.Result, generatedAt time.Time) (string, error) {
	data := documentData{
		Input:  strings.Join(strings.Fields(result.Input), " "),
		ID:     result.PersistedID,
		Phases: make([]string, 0, len(result.Rendered)),
	}
	if !generatedAt.IsZero() {
		data.GeneratedAt = generatedAt.UTC().Format("2006-01-02 15:04 MST")
	}
	for _, r := range result.Rendered {
		data.Phases = append(data.Phases, strings.TrimSpace(r.Markdown))
	}

	var buf bytes.Buffer
	if err := document.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render roadmap document: %w", err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// Render produces the document for result in format f.
func Render(result *roadmap.Result, f Format, generatedAt time.Time) ([]byte, error) {
	md, err := Markdown(result, generatedAt)
	if err != nil {
		return nil, err
	}
	if f == FormatText {
		return []byte(PlainText(md)), nil
	}
	return []byte(md), nil
}

// RenderPhase produces a single phase in format f.
func RenderPhase(phase roadmap.RenderedPhase, f Format) []byte {
	md := strings.TrimSpace(phase.Markdown) + "\n"
	if f == FormatText {
		return []byte(PlainText(md))
	}
	return []byte(md)
}

// FileName returns the download name for result, e.g. "roadmap-1a2b3c4d.md".
func FileName(result *roadmap.Result, f Format) string {
	id := result.PersistedID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return "roadmap." + string(f)
	}
	return fmt.Sprintf("roadmap-%s.%s", id, f)
}

// WriteFiles writes the assembled document and one file per phase into dir
// and returns the paths written, document first.
func WriteFiles(dir string, result *roadmap.Result, f Format, generatedAt time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	doc, err := Render(result, f, generatedAt)
	if err != nil {
		return nil, err
	}
	docPath := filepath.Join(dir, FileName(result, f))
	if err := os.WriteFile(docPath, doc, 0o644); err != nil { //nolint:gosec // exported documents are not secret
		return nil, fmt.Errorf("failed to write %s: %w", docPath, err)
	}

	paths := []string{docPath}
	for _, phase := range result.Rendered {
		p := filepath.Join(dir, fmt.Sprintf("phase-%d.%s", phase.Ordinal, f))
		if err := os.WriteFile(p, RenderPhase(phase, f), 0o644); err != nil { //nolint:gosec // exported documents are not secret
			return paths, fmt.Errorf("failed to write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
