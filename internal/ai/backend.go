package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/metrics"
)

const NotConfiguredMessage = "AI backend is not configured properly. Please check your environment setup."

var errNoBaseURL = errors.New("ai backend: could not determine base url")

// BackendClient calls an external AI backend over HTTP. Every failure is
// logged and turned into a user-facing message; callers never see transport
// errors.
type BackendClient struct {
	BaseURL string
	// Origin is used when BaseURL is empty and the caller supplies none.
	Origin string
	Client *http.Client
	log    zerolog.Logger
}

func NewBackendClient(baseURL, origin string, timeout time.Duration, log zerolog.Logger) *BackendClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BackendClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Origin:  strings.TrimRight(origin, "/"),
		Client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "ai.backend").Logger(),
	}
}

type backendResp struct {
	Message string `json:"message"`
}

func backendPath(k Kind) string {
	switch k {
	case KindChat:
		return "/api/chatToDocument"
	case KindSummarize:
		return "/api/summarizeDocument"
	case KindTranslate:
		return "/api/translateDocument"
	default:
		return "/api/generateContent"
	}
}

func backendBody(req Request) map[string]any {
	doc := req.Document
	if len(doc) == 0 {
		doc = json.RawMessage("null")
	}
	body := map[string]any{"documentData": doc}
	switch req.Kind {
	case KindChat:
		body["question"] = req.Input
	case KindTranslate:
		body["targetLang"] = req.Input
	case KindSummarize:
	default:
		body["prompt"] = req.Input
	}
	return body
}

// UnavailableMessage is returned when the backend cannot be reached or
// answers with a non-2xx status.
func UnavailableMessage(k Kind) string {
	switch k {
	case KindChat:
		return "Sorry, I couldn't process your request. Please check that the AI backend service is running."
	case KindSummarize:
		return "Sorry, I couldn't summarize the document. Please check that the AI backend service is running."
	case KindTranslate:
		return "Sorry, I couldn't translate the document. Please check that the AI backend service is running."
	default:
		return "Sorry, I couldn't generate content. Please check that the AI backend service is running."
	}
}

func (b *BackendClient) Respond(ctx context.Context, req Request) string {
	return b.Call(ctx, "", req)
}

// Call resolves the base url on every call: the configured url, then origin,
// then the client's default origin.
func (b *BackendClient) Call(ctx context.Context, origin string, req Request) string {
	base, err := b.resolve(origin)
	if err != nil {
		b.log.Error().Err(err).Str("kind", string(req.Kind)).Msg("ai backend misconfigured")
		metrics.AIBackendCalls.WithLabelValues(string(req.Kind), "misconfigured").Inc()
		return NotConfiguredMessage
	}

	msg, err := b.post(ctx, base, req)
	if err != nil {
		b.log.Error().Err(err).Str("kind", string(req.Kind)).Str("base_url", base).Msg("ai backend call failed")
		metrics.AIBackendCalls.WithLabelValues(string(req.Kind), "error").Inc()
		return UnavailableMessage(req.Kind)
	}
	metrics.AIBackendCalls.WithLabelValues(string(req.Kind), "ok").Inc()
	return msg
}

func (b *BackendClient) resolve(origin string) (string, error) {
	for _, candidate := range []string{b.BaseURL, origin, b.Origin} {
		if c := strings.TrimRight(strings.TrimSpace(candidate), "/"); c != "" {
			return c, nil
		}
	}
	return "", errNoBaseURL
}

func (b *BackendClient) post(ctx context.Context, base string, req Request) (string, error) {
	if b.Client == nil {
		return "", errors.New("ai backend: http client is nil")
	}

	raw, err := json.Marshal(backendBody(req))
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+backendPath(req.Kind), bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := b.Client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		b.log.Error().
			Int("status", resp.StatusCode).
			Str("body", string(text)).
			Str("kind", string(req.Kind)).
			Msg("ai backend returned an error status")
		return "", fmt.Errorf("ai backend: status %d", resp.StatusCode)
	}

	var decoded backendResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.Message, nil
}
