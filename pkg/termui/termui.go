// Package termui renders roadmaps and stored records for the terminal.
package termui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"roadmapbp/pkg/persistence"
	"roadmapbp/pkg/roadmap"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

//nolint:gochecknoglobals // shared styles
var (
	accent = lipgloss.Color("#5B8DEF")
	muted  = lipgloss.Color("#888888")
	failed = lipgloss.Color("#FF6B6B")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(muted)
	errorStyle = lipgloss.NewStyle().Foreground(failed)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func contentWidth(width int) int {
	if width <= 0 {
		width = DefaultWidth
	}
	// border and padding
	return max(20, width-4)
}

// Summary renders the input, persistence id and each phase's title and
// executive summary.
func Summary(result *roadmap.Result, width int) string {
	inner := contentWidth(width)
	wrap := lipgloss.NewStyle().Width(inner)

	header := []string{titleStyle.Render("Project Roadmap"), wrap.Render(result.Input)}
	if result.PersistedID != "" {
		header = append(header, mutedStyle.Render("id "+result.PersistedID))
	}

	var sections []string
	sections = append(sections, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header...)))

	if len(result.Rendered) == 0 {
		sections = append(sections, mutedStyle.Render("No phases were planned."))
	}
	for i, r := range result.Rendered {
		title := fmt.Sprintf("Phase %d", r.Ordinal)
		if i < len(result.Phases) {
			if t := result.Phases[i].Title(); t != "" {
				title += ": " + t
			}
		}
		summary := r.ExecutiveSummary
		if summary == "" {
			summary = mutedStyle.Render("(no executive summary)")
		}
		sections = append(sections, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			labelStyle.Render(title),
			wrap.Render(summary),
		)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Drafts renders draft outcomes, one box per draft.
func Drafts(outcomes []roadmap.DraftOutcome, width int) string {
	wrap := lipgloss.NewStyle().Width(contentWidth(width))
	boxes := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		heading := labelStyle.Render(fmt.Sprintf("Draft %d", o.Number))
		body := wrap.Render(strings.TrimSpace(o.Markdown))
		if o.Err != nil {
			body = errorStyle.Render(wrap.Render("failed: " + o.Err.Error()))
		}
		boxes = append(boxes, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, heading, body)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, boxes...)
}

// RoadmapList renders stored roadmaps newest first, one line each.
func RoadmapList(records []persistence.RoadmapRecord, width int) string {
	if len(records) == 0 {
		return mutedStyle.Render("No roadmaps stored.")
	}
	inner := contentWidth(width)
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, labelStyle.Render(fmt.Sprintf("%-36s  %-16s  %6s  %s", "ID", "CREATED", "PHASES", "INPUT")))
	for i := range records {
		rec := &records[i]
		prefix := fmt.Sprintf("%-36s  %-16s  %6d  ", rec.ID, stamp(rec.CreatedAt), len(rec.Phases))
		lines = append(lines, prefix+truncate(rec.UserInput, inner-len(prefix)))
	}
	return strings.Join(lines, "\n")
}

// FeedbackList renders stored feedback newest first.
func FeedbackList(records []persistence.FeedbackRecord, width int) string {
	if len(records) == 0 {
		return mutedStyle.Render("No feedback stored.")
	}
	inner := contentWidth(width)
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, labelStyle.Render(fmt.Sprintf("%-16s  %-4s  %-36s  %s", "CREATED", "VOTE", "ROADMAP", "INPUT")))
	for i := range records {
		rec := &records[i]
		vote := rec.Sentiment
		if vote == persistence.SentimentUp {
			vote = titleStyle.Render(fmt.Sprintf("%-4s", vote))
		} else {
			vote = errorStyle.Render(fmt.Sprintf("%-4s", vote))
		}
		prefix := fmt.Sprintf("%-16s  %s  %-36s  ", stamp(rec.CreatedAt), vote, rec.RoadmapID)
		lines = append(lines, prefix+truncate(rec.UserInput, inner-lipgloss.Width(prefix)))
	}
	return strings.Join(lines, "\n")
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// truncate shortens s to n cells on one line, marking the cut with "…".
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 1 {
		return ""
	}
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > n-1 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
