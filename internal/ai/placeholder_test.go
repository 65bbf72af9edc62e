package ai

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholder_IdenticalInputsGiveIdenticalOutput(t *testing.T) {
	p := NewPlaceholder()
	doc := TextDocument("Meeting notes for Tuesday")

	for _, k := range Kinds() {
		req := Request{Kind: k, Input: "write a poem", Document: doc}
		first := p.Respond(context.Background(), req)
		second := p.Respond(context.Background(), req)
		assert.Equal(t, first, second, "kind %s", k)
		assert.NotEmpty(t, first, "kind %s", k)
	}
}

func TestPlaceholder_InterpolatesInputAndLength(t *testing.T) {
	p := NewPlaceholder()
	doc := TextDocument("hello")

	out := p.Generate("write a poem", doc)
	assert.True(t, strings.HasPrefix(out, `Content generated for prompt: "write a poem"`))
	assert.Contains(t, out, "approximately 5 characters")

	out = p.Answer("what is this?", doc)
	assert.True(t, strings.HasPrefix(out, `Answer to: "what is this?"`))
	assert.Contains(t, out, "approximately 5 characters")

	assert.Contains(t, p.Translate("fr", doc), `Translation to "fr"`)
	assert.Contains(t, p.Summarize(doc), "approximately 5 characters")
}

func TestDocumentLength(t *testing.T) {
	cases := []struct {
		name string
		doc  json.RawMessage
		want int
	}{
		{"absent", nil, 0},
		{"null", json.RawMessage("null"), 0},
		{"string", TextDocument("héllo"), 5},
		{"empty string", TextDocument(""), 0},
		{"object compacted", json.RawMessage(`{ "a" : 1 }`), len(`{"a":1}`)},
		{"array", json.RawMessage(`[1, 2]`), len(`[1,2]`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DocumentLength(tc.doc))
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Translate ")
	require.NoError(t, err)
	assert.Equal(t, KindTranslate, k)

	_, err = ParseKind("poetry")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Placeholder ", func(context.Context) (Provider, error) { return NewPlaceholder(), nil })

	p, err := reg.Get(context.Background(), "placeholder")
	require.NoError(t, err)
	assert.IsType(t, &Placeholder{}, p)

	_, err = reg.Get(context.Background(), "openai")
	assert.ErrorContains(t, err, "unknown ai provider")
	assert.Equal(t, []string{"placeholder"}, reg.Names())
}
