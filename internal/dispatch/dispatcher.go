// Package dispatch runs AI requests on behalf of a room: it computes the
// result, records it in the room's shared storage under a short-lived bot
// session and broadcasts the completion event. Dispatch never fails to its
// caller; failures become the kind's apology text.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/common"
	"github.com/suPer8Hu/collabnote/internal/metrics"
	"github.com/suPer8Hu/collabnote/internal/realtime"
)

// CompletedSentinel replaces an empty provider result.
const CompletedSentinel = "Operation completed"

// ErrRequestSettled is returned for a caller supplied request id whose
// stored entry already completed or failed.
var ErrRequestSettled = errors.New("dispatch: request already settled")

type Request struct {
	RoomID    string
	RequestID string
	Kind      ai.Kind
	Input     string
	Document  json.RawMessage
}

// Outcome is the terminal state of one dispatch. Err is set when the
// dispatch failed; Result then holds the apology.
type Outcome struct {
	RequestID string
	Result    string
	Err       error
}

type Dispatcher struct {
	provider  ai.Provider
	authority *realtime.Authority
	transport realtime.Transport
	log       zerolog.Logger
	now       func() time.Time
}

func New(provider ai.Provider, authority *realtime.Authority, transport realtime.Transport, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		provider:  provider,
		authority: authority,
		transport: transport,
		log:       log.With().Str("component", "dispatch").Logger(),
		now:       time.Now,
	}
}

// Dispatch returns the result text, or the kind's apology on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) string {
	return d.Run(ctx, req).Result
}

func (d *Dispatcher) Run(ctx context.Context, req Request) (out Outcome) {
	if req.RequestID == "" {
		id, err := common.NewULID()
		if err != nil {
			return d.fail(ctx, nil, req, err)
		}
		req.RequestID = id
	}

	defer func() {
		if r := recover(); r != nil {
			out = d.fail(ctx, nil, req, fmt.Errorf("dispatch panic: %v", r))
		}
	}()

	result := d.provider.Respond(ctx, ai.Request{Kind: req.Kind, Input: req.Input, Document: req.Document})
	if strings.TrimSpace(result) == "" {
		result = CompletedSentinel
	}

	sess, err := d.open(ctx, req.RoomID)
	if err != nil {
		return d.fail(ctx, nil, req, err)
	}

	entry := d.entry(ctx, sess, req)
	now := d.now()
	entry.Complete(result, now)
	if err := sess.PutRequest(ctx, entry); err != nil {
		return d.fail(ctx, sess, req, err)
	}

	if err := sess.Publish(ctx, realtime.CompletedEvent(string(req.Kind), req.RequestID, result, now)); err != nil {
		return d.fail(ctx, sess, req, err)
	}

	metrics.AIDispatches.WithLabelValues(string(req.Kind), "responded").Inc()
	d.log.Info().
		Str("room_id", req.RoomID).
		Str("request_id", req.RequestID).
		Str("kind", string(req.Kind)).
		Str("actor", sess.Actor()).
		Msg("ai request responded")
	return Outcome{RequestID: req.RequestID, Result: result}
}

// MarkPending records req as pending so clients can track it before a
// worker picks it up.
func (d *Dispatcher) MarkPending(ctx context.Context, req Request) (realtime.AIRequest, error) {
	if req.RequestID == "" {
		return realtime.AIRequest{}, errors.New("dispatch: request id is required")
	}
	sess, err := d.open(ctx, req.RoomID)
	if err != nil {
		return realtime.AIRequest{}, err
	}
	entry := PendingRequest(req, d.now())
	if err := sess.PutRequest(ctx, entry); err != nil {
		return realtime.AIRequest{}, err
	}
	return entry, nil
}

// Lookup reads a tracked request of roomID.
func (d *Dispatcher) Lookup(ctx context.Context, roomID, requestID string) (*realtime.AIRequest, error) {
	return d.transport.GetRequest(ctx, roomID, requestID)
}

// CheckReusable reports ErrRequestSettled when requestID names an entry of
// roomID that is no longer pending. Unknown ids are free to use.
func (d *Dispatcher) CheckReusable(ctx context.Context, roomID, requestID string) error {
	if requestID == "" || d.transport == nil {
		return nil
	}
	existing, err := d.Lookup(ctx, roomID, requestID)
	if errors.Is(err, realtime.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Status != realtime.StatusPending {
		return ErrRequestSettled
	}
	return nil
}

func (d *Dispatcher) open(ctx context.Context, roomID string) (*realtime.Session, error) {
	if d.authority == nil || d.transport == nil {
		return nil, errors.New("dispatch: realtime is not configured")
	}
	_, token, err := d.authority.Prepare(roomID)
	if err != nil {
		return nil, err
	}
	return d.authority.Open(ctx, d.transport, token)
}

// entry returns the stored pending request, or a fresh one.
func (d *Dispatcher) entry(ctx context.Context, sess *realtime.Session, req Request) realtime.AIRequest {
	existing, err := sess.GetRequest(ctx, req.RequestID)
	if err == nil && existing != nil {
		return *existing
	}
	if err != nil && !errors.Is(err, realtime.ErrNotFound) {
		d.log.Warn().Err(err).Str("request_id", req.RequestID).Msg("reading pending ai request failed")
	}
	return PendingRequest(req, d.now())
}

func (d *Dispatcher) fail(ctx context.Context, sess *realtime.Session, req Request, cause error) Outcome {
	metrics.AIDispatches.WithLabelValues(string(req.Kind), "failed").Inc()
	d.log.Error().
		Err(cause).
		Str("room_id", req.RoomID).
		Str("request_id", req.RequestID).
		Str("kind", string(req.Kind)).
		Msg("ai dispatch failed")

	if sess != nil {
		entry := d.entry(ctx, sess, req)
		entry.Fail(d.now())
		if err := sess.PutRequest(ctx, entry); err != nil {
			d.log.Warn().Err(err).Str("request_id", req.RequestID).Msg("marking ai request as failed")
		}
	}
	return Outcome{RequestID: req.RequestID, Result: req.Kind.Apology(), Err: cause}
}

// PendingRequest builds the storage entry for req with only the input
// field of its kind set.
func PendingRequest(req Request, at time.Time) realtime.AIRequest {
	entry := realtime.AIRequest{
		ID:        req.RequestID,
		Type:      string(req.Kind),
		Status:    realtime.StatusPending,
		Timestamp: at,
	}
	switch req.Kind {
	case ai.KindGenerate:
		entry.Prompt = req.Input
	case ai.KindChat:
		entry.Question = req.Input
	case ai.KindTranslate:
		entry.TargetLang = req.Input
	}
	return entry
}
