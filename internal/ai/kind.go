package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Kind string

const (
	KindGenerate  Kind = "generate"
	KindChat      Kind = "chat"
	KindSummarize Kind = "summarize"
	KindTranslate Kind = "translate"
)

var kinds = []Kind{KindGenerate, KindChat, KindSummarize, KindTranslate}

func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown ai request kind: %q", s)
}

// Apology is shown to users when a dispatch of this kind fails.
func (k Kind) Apology() string {
	switch k {
	case KindChat:
		return "Sorry, I couldn't process your question. Please try again."
	case KindSummarize:
		return "Sorry, I couldn't summarize the document. Please try again."
	case KindTranslate:
		return "Sorry, I couldn't translate the document. Please try again."
	default:
		return "Sorry, I couldn't generate content. Please try again."
	}
}

// Request is one AI operation. Input holds the prompt, the question or the
// target language depending on Kind; summarize ignores it.
type Request struct {
	Kind     Kind
	Input    string
	Document json.RawMessage
}
