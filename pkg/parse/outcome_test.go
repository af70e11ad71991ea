package parse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObject(t *testing.T) {
	out := Parse(`{"expanded_brief": "A long brief", "n": 3}`)
	require.Equal(t, Object, out.Kind())
	assert.True(t, out.Structured())

	fields, ok := out.Fields()
	require.True(t, ok)
	s, ok := String(fields, "expanded_brief")
	assert.True(t, ok)
	assert.Equal(t, "A long brief", s)
	assert.Equal(t, json.Number("3"), fields["n"])

	_, ok = out.Items()
	assert.False(t, ok)
}

func TestParseFencedAndEmbedded(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"json fence", "Here you go:\n```json\n{\"phases\": []}\n```\nThanks"},
		{"bare fence", "```\n{\"phases\": []}\n```"},
		{"prose around object", "Sure! {\"phases\": []} Hope this helps."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Parse(tt.text)
			require.Equal(t, Object, out.Kind())
			fields, _ := out.Fields()
			assert.Contains(t, fields, "phases")
			assert.Equal(t, tt.text, out.Raw())
		})
	}
}

func TestParseArray(t *testing.T) {
	out := Parse(`[{"title":"a"}, 2]`)
	require.Equal(t, Array, out.Kind())
	items, ok := out.Items()
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestParseUnstructured(t *testing.T) {
	for _, text := range []string{"", "   ", "plain prose", "not json {", `"just a string"`, `{"a":1} {"b":2}`, "42"} {
		out := Parse(text)
		assert.Equal(t, Unstructured, out.Kind(), text)
		assert.False(t, out.Structured(), text)
		assert.Equal(t, text, out.Raw())
		_, ok := out.Fields()
		assert.False(t, ok)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "object", Object.String())
	assert.Equal(t, "array", Array.String())
	assert.Equal(t, "unstructured", Unstructured.String())
}
