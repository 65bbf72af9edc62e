package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/realtime"
)

type fixedProvider struct {
	reply string
	calls int
}

func (p *fixedProvider) Respond(context.Context, ai.Request) string {
	p.calls++
	return p.reply
}

type panickingProvider struct{}

func (panickingProvider) Respond(context.Context, ai.Request) string { panic("boom") }

// downTransport fails every call, like a realtime backend that is unreachable.
type downTransport struct{}

func (downTransport) Ping(context.Context) error { return errors.New("dial tcp: connection refused") }
func (downTransport) PutRequest(context.Context, string, realtime.AIRequest) error {
	return errors.New("unreachable")
}
func (downTransport) GetRequest(context.Context, string, string) (*realtime.AIRequest, error) {
	return nil, errors.New("unreachable")
}
func (downTransport) Publish(context.Context, string, realtime.Event) error {
	return errors.New("unreachable")
}
func (downTransport) Subscribe(context.Context, string) (<-chan realtime.Event, error) {
	return nil, errors.New("unreachable")
}

// noPublish stores requests but refuses to broadcast.
type noPublish struct{ *realtime.Hub }

func (noPublish) Publish(context.Context, string, realtime.Event) error {
	return errors.New("publish rejected")
}

func newAuthority(t *testing.T, policy string) *realtime.Authority {
	t.Helper()
	a, err := realtime.NewAuthority("test-secret", time.Minute, policy)
	require.NoError(t, err)
	return a
}

func TestDispatch_RecordsPublishesAndReturns(t *testing.T) {
	hub := realtime.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := hub.Subscribe(ctx, "room-1")
	require.NoError(t, err)

	d := New(&fixedProvider{reply: "a poem"}, newAuthority(t, "full"), hub, zerolog.Nop())
	got := d.Dispatch(ctx, Request{RoomID: "room-1", RequestID: "req-1", Kind: ai.KindGenerate, Input: "write a poem"})
	assert.Equal(t, "a poem", got)

	stored, err := hub.GetRequest(ctx, "room-1", "req-1")
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusCompleted, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, "a poem", *stored.Result)
	assert.Equal(t, "write a poem", stored.Prompt)
	assert.NotNil(t, stored.CompletedAt)

	select {
	case ev := <-events:
		assert.Equal(t, "AI_GENERATE_COMPLETED", ev.Type)
		assert.Equal(t, "req-1", ev.Data.RequestID)
		assert.Equal(t, "a poem", ev.Data.Result)
		assert.NotEmpty(t, ev.Data.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("completion event not published")
	}
}

func TestDispatch_EmptyResultBecomesSentinel(t *testing.T) {
	d := New(&fixedProvider{reply: "  "}, newAuthority(t, "minimal"), realtime.NewHub(), zerolog.Nop())
	got := d.Dispatch(context.Background(), Request{RoomID: "room-1", RequestID: "req-1", Kind: ai.KindSummarize})
	assert.Equal(t, CompletedSentinel, got)
}

func TestDispatch_GeneratesRequestID(t *testing.T) {
	d := New(&fixedProvider{reply: "ok"}, newAuthority(t, "full"), realtime.NewHub(), zerolog.Nop())
	out := d.Run(context.Background(), Request{RoomID: "room-1", Kind: ai.KindChat, Input: "why?"})
	require.NoError(t, out.Err)
	assert.Len(t, out.RequestID, 26)
}

func TestDispatch_KeepsPendingTimestamp(t *testing.T) {
	hub := realtime.NewHub()
	d := New(&fixedProvider{reply: "bonjour"}, newAuthority(t, "full"), hub, zerolog.Nop())
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	d.now = func() time.Time { return created }

	req := Request{RoomID: "room-1", RequestID: "req-9", Kind: ai.KindTranslate, Input: "fr"}
	_, err := d.MarkPending(context.Background(), req)
	require.NoError(t, err)

	pending, err := d.Lookup(context.Background(), "room-1", "req-9")
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusPending, pending.Status)
	assert.Equal(t, "fr", pending.TargetLang)

	d.now = func() time.Time { return created.Add(time.Minute) }
	assert.Equal(t, "bonjour", d.Dispatch(context.Background(), req))

	done, err := d.Lookup(context.Background(), "room-1", "req-9")
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusCompleted, done.Status)
	assert.True(t, done.Timestamp.Equal(created))
	assert.True(t, done.CompletedAt.Equal(created.Add(time.Minute)))
}

func TestDispatch_UnreachableRealtimeReturnsApology(t *testing.T) {
	d := New(ai.NewPlaceholder(), newAuthority(t, "full"), downTransport{}, zerolog.Nop())

	var got string
	require.NotPanics(t, func() {
		got = d.Dispatch(context.Background(), Request{RoomID: "room-1", Kind: ai.KindGenerate, Input: "write a poem"})
	})
	assert.Equal(t, "Sorry, I couldn't generate content. Please try again.", got)
}

func TestDispatch_ApologyPerKind(t *testing.T) {
	d := New(&fixedProvider{reply: "x"}, newAuthority(t, "full"), downTransport{}, zerolog.Nop())
	for _, k := range ai.Kinds() {
		out := d.Run(context.Background(), Request{RoomID: "room-1", Kind: k})
		assert.Error(t, out.Err)
		assert.Equal(t, k.Apology(), out.Result)
	}
}

func TestDispatch_ProviderPanicIsRecovered(t *testing.T) {
	d := New(panickingProvider{}, newAuthority(t, "full"), realtime.NewHub(), zerolog.Nop())
	out := d.Run(context.Background(), Request{RoomID: "room-1", RequestID: "req-1", Kind: ai.KindChat})
	assert.ErrorContains(t, out.Err, "boom")
	assert.Equal(t, ai.KindChat.Apology(), out.Result)
}

func TestDispatch_PublishFailureMarksEntryFailed(t *testing.T) {
	transport := noPublish{realtime.NewHub()}
	d := New(&fixedProvider{reply: "done"}, newAuthority(t, "full"), transport, zerolog.Nop())

	out := d.Run(context.Background(), Request{RoomID: "room-1", RequestID: "req-1", Kind: ai.KindSummarize})
	assert.Error(t, out.Err)
	assert.Equal(t, ai.KindSummarize.Apology(), out.Result)

	stored, err := transport.GetRequest(context.Background(), "room-1", "req-1")
	require.NoError(t, err)
	assert.Equal(t, realtime.StatusError, stored.Status)
	assert.Nil(t, stored.Result)
}

func TestDispatch_NotConfigured(t *testing.T) {
	d := New(&fixedProvider{reply: "x"}, nil, nil, zerolog.Nop())
	out := d.Run(context.Background(), Request{RoomID: "room-1", Kind: ai.KindGenerate})
	assert.Error(t, out.Err)
	assert.Equal(t, ai.KindGenerate.Apology(), out.Result)
}

func TestDispatch_CheckReusable(t *testing.T) {
	hub := realtime.NewHub()
	d := New(&fixedProvider{reply: "ok"}, newAuthority(t, "full"), hub, zerolog.Nop())
	ctx := context.Background()

	assert.NoError(t, d.CheckReusable(ctx, "room-1", ""))
	assert.NoError(t, d.CheckReusable(ctx, "room-1", "req-1"))

	req := Request{RoomID: "room-1", RequestID: "req-1", Kind: ai.KindChat, Input: "why?"}
	_, err := d.MarkPending(ctx, req)
	require.NoError(t, err)
	assert.NoError(t, d.CheckReusable(ctx, "room-1", "req-1"))

	require.Equal(t, "ok", d.Dispatch(ctx, req))
	assert.ErrorIs(t, d.CheckReusable(ctx, "room-1", "req-1"), ErrRequestSettled)
	// ids are scoped to their room
	assert.NoError(t, d.CheckReusable(ctx, "room-2", "req-1"))

	assert.Error(t, New(nil, nil, downTransport{}, zerolog.Nop()).CheckReusable(ctx, "room-1", "req-1"))
}
