package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Placeholder synthesizes canned responses from the input and the size of
// the document. It stands in for an inference backend and never fails.
type Placeholder struct{}

func NewPlaceholder() *Placeholder {
	return &Placeholder{}
}

func (p *Placeholder) Respond(_ context.Context, req Request) string {
	switch req.Kind {
	case KindChat:
		return p.Answer(req.Input, req.Document)
	case KindSummarize:
		return p.Summarize(req.Document)
	case KindTranslate:
		return p.Translate(req.Input, req.Document)
	default:
		return p.Generate(req.Input, req.Document)
	}
}

func (p *Placeholder) Generate(prompt string, doc json.RawMessage) string {
	return fmt.Sprintf("Content generated for prompt: %q\n\n", prompt) +
		"This content was generated using the room broadcast channel as the message transport. " +
		"In a production environment, you would integrate with an AI provider to generate high-quality responses.\n\n" +
		fmt.Sprintf("Your document has approximately %d characters.\n\n", DocumentLength(doc)) +
		"Here's a sample response based on your prompt:\n\n" +
		"Lorem ipsum dolor sit amet, consectetur adipiscing elit. Nullam auctor, nisl eget ultricies aliquam, " +
		"nunc nisi aliquam nunc, vitae aliquam nunc nisi eget nunc. Nullam auctor, nisl eget ultricies aliquam, " +
		"nunc nisi aliquam nunc, vitae aliquam nunc nisi eget nunc."
}

func (p *Placeholder) Answer(question string, doc json.RawMessage) string {
	return fmt.Sprintf("Answer to: %q\n\n", question) +
		"This answer was generated using the room broadcast channel as the message transport. " +
		"In a production environment, you would integrate with an AI provider to generate high-quality responses.\n\n" +
		fmt.Sprintf("Your document has approximately %d characters.\n\n", DocumentLength(doc)) +
		"Here's a sample answer to your question:\n\n" +
		"The answer depends on the specific context, but generally speaking, the document discusses various aspects " +
		"related to your question. It mentions several key points that could help address what you're asking about."
}

func (p *Placeholder) Summarize(doc json.RawMessage) string {
	return "Summary of your document\n\n" +
		"This summary was generated without an AI provider. " +
		"In a production environment, you would integrate with an AI provider to produce a real summary.\n\n" +
		fmt.Sprintf("Your document has approximately %d characters.", DocumentLength(doc))
}

func (p *Placeholder) Translate(targetLang string, doc json.RawMessage) string {
	return fmt.Sprintf("Translation to %q\n\n", targetLang) +
		"This translation was generated without an AI provider. " +
		"In a production environment, you would integrate with an AI provider to translate the document.\n\n" +
		fmt.Sprintf("Your document has approximately %d characters.", DocumentLength(doc))
}

// DocumentLength is the character count of a document snapshot. A JSON
// string counts its own characters; any other JSON value counts the
// characters of its compact serialization. Empty and null count zero.
func DocumentLength(doc json.RawMessage) int {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return utf8.RuneCountInString(s)
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		return utf8.RuneCount(buf.Bytes())
	}
	return utf8.RuneCount(trimmed)
}

// TextDocument wraps plain text as a document snapshot.
func TextDocument(text string) json.RawMessage {
	raw, _ := json.Marshal(text)
	return raw
}
