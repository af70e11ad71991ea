package roadmap

import (
	"encoding/json"

	"roadmapbp/pkg/parse"
	"roadmapbp/pkg/tokens"
)

// BriefKeys are the brief sections kept when the brief is condensed for rendering.
//
//nolint:gochecknoglobals // fixed section list
var BriefKeys = []string{
	"project_overview",
	"key_objectives_and_high_level_goals",
	"strategic_considerations",
	"technical_architecture",
}

// Condense bounds the brief passed to each render call. A structured brief, or
// one longer than overTokens, is reduced to the known BriefKeys rendered as a
// JSON object. When no known key is present the brief text is returned as is.
func Condense(brief Brief, overTokens int) string {
	if !brief.Structured() && (overTokens <= 0 || tokens.Within(brief.Text, overTokens)) {
		return brief.Text
	}

	fields := brief.Fields
	if fields == nil {
		if f, ok := parse.Parse(brief.Text).Fields(); ok {
			fields = f
		}
	}
	if fields == nil {
		return brief.Text
	}

	kept := make(map[string]any, len(BriefKeys))
	for _, key := range BriefKeys {
		if v, ok := fields[key]; ok && v != nil {
			kept[key] = v
		}
	}
	if len(kept) == 0 {
		return brief.Text
	}

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return brief.Text
	}
	return string(data)
}
