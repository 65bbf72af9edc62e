package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/realtime"
)

// gatedDispatch returns reply only after release is closed.
type gatedDispatch struct {
	reply   string
	err     error
	release chan struct{}
	calls   chan string
}

func newGated(reply string, err error) *gatedDispatch {
	return &gatedDispatch{reply: reply, err: err, release: make(chan struct{}), calls: make(chan string, 4)}
}

func (g *gatedDispatch) fn(ctx context.Context, _ string, input string) (string, error) {
	g.calls <- input
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.reply, g.err
}

func startPanel(t *testing.T, kind ai.Kind, g *gatedDispatch) (*Panel, chan realtime.Event) {
	t.Helper()
	p := New(kind, g.fn)
	events := make(chan realtime.Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(p.Close)
	go p.Run(ctx, events)
	return p, events
}

func waitSettled(t *testing.T, p *Panel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.WaitSettled(ctx))
}

func aiMessages(p *Panel) []string {
	var out []string
	for _, m := range p.Messages() {
		if m.Sender == SenderAI {
			out = append(out, m.Content)
		}
	}
	return out
}

// completed builds the broadcast for the panel's current exchange.
func completed(p *Panel, kind ai.Kind, result string) realtime.Event {
	return realtime.CompletedEvent(string(kind), p.RequestID(), result, time.Now())
}

func TestPanel_DirectThenBroadcastRendersOnce(t *testing.T) {
	g := newGated("the answer", nil)
	p, events := startPanel(t, ai.KindChat, g)

	require.True(t, p.Submit(context.Background(), "what is this?"))
	assert.Equal(t, StateAwaiting, p.State())
	close(g.release)
	waitSettled(t, p)

	events <- completed(p, ai.KindChat, "the answer")
	assert.Never(t, func() bool { return len(aiMessages(p)) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, []string{"the answer"}, aiMessages(p))
	assert.Equal(t, StateSettled, p.State())
}

func TestPanel_BroadcastThenDirectRendersOnce(t *testing.T) {
	g := newGated("the answer", nil)
	p, events := startPanel(t, ai.KindChat, g)

	require.True(t, p.Submit(context.Background(), "what is this?"))
	events <- completed(p, ai.KindChat, "the answer")
	waitSettled(t, p)

	close(g.release)
	assert.Never(t, func() bool { return len(aiMessages(p)) > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, SenderUser, msgs[0].Sender)
	assert.Equal(t, "what is this?", msgs[0].Content)
	assert.Equal(t, "the answer", msgs[1].Content)
}

func TestPanel_BroadcastAloneSettles(t *testing.T) {
	g := newGated("", nil) // never released
	p, events := startPanel(t, ai.KindGenerate, g)

	require.True(t, p.Submit(context.Background(), "write a poem"))
	events <- completed(p, ai.KindGenerate, "roses are red")
	waitSettled(t, p)
	assert.Equal(t, []string{"roses are red"}, aiMessages(p))
}

func TestPanel_DirectAloneSettles(t *testing.T) {
	g := newGated("roses are red", nil)
	p, _ := startPanel(t, ai.KindGenerate, g)

	require.True(t, p.Submit(context.Background(), "write a poem"))
	close(g.release)
	waitSettled(t, p)
	assert.Equal(t, []string{"roses are red"}, aiMessages(p))
}

func TestPanel_DifferentResultsBothRender(t *testing.T) {
	g := newGated("first", nil)
	p, events := startPanel(t, ai.KindGenerate, g)

	require.True(t, p.Submit(context.Background(), "go"))
	close(g.release)
	waitSettled(t, p)
	events <- completed(p, ai.KindGenerate, "second")
	assert.Eventually(t, func() bool { return len(aiMessages(p)) == 2 }, time.Second, 10*time.Millisecond)
}

func TestPanel_IgnoresOtherKindsAndEmptyResults(t *testing.T) {
	g := newGated("", nil)
	p, events := startPanel(t, ai.KindSummarize, g)

	require.True(t, p.Submit(context.Background(), "summarize"))
	events <- completed(p, ai.KindTranslate, "hallo")
	events <- completed(p, ai.KindSummarize, "")
	assert.Never(t, func() bool { return p.State() != StateAwaiting }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, aiMessages(p))
}

func TestPanel_DispatchErrorAppendsApology(t *testing.T) {
	g := newGated("", errors.New("network down"))
	p, _ := startPanel(t, ai.KindTranslate, g)

	require.True(t, p.Submit(context.Background(), "fr"))
	close(g.release)
	waitSettled(t, p)
	assert.Equal(t, []string{ai.KindTranslate.Apology()}, aiMessages(p))
}

func TestPanel_SubmitRules(t *testing.T) {
	g := newGated("ok", nil)
	p, _ := startPanel(t, ai.KindChat, g)

	assert.False(t, p.Submit(context.Background(), "   "))
	assert.Equal(t, StateIdle, p.State())

	require.True(t, p.Submit(context.Background(), "one"))
	assert.False(t, p.Submit(context.Background(), "two"), "in flight")

	close(g.release)
	waitSettled(t, p)

	// a new exchange resets the conversation
	require.True(t, p.Submit(context.Background(), "three"))
	msgs := p.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, Message{ID: msgs[0].ID, Content: "three", Sender: SenderUser}, msgs[0])
	for _, m := range msgs {
		assert.NotEqual(t, "one", m.Content)
	}
}

func TestPanel_CloseDiscardsInFlight(t *testing.T) {
	g := newGated("late", nil)
	p, events := startPanel(t, ai.KindChat, g)

	require.True(t, p.Submit(context.Background(), "hello"))
	<-g.calls
	p.Close()
	close(g.release)
	events <- completed(p, ai.KindChat, "late broadcast")

	assert.Never(t, func() bool { return len(aiMessages(p)) > 0 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, StateAwaiting, p.State())
	assert.False(t, p.Submit(context.Background(), "again"))
}

func TestPanel_IgnoresBroadcastsOfOtherRequests(t *testing.T) {
	g := newGated("", nil) // never released
	p, events := startPanel(t, ai.KindChat, g)

	require.True(t, p.Submit(context.Background(), "mine"))
	require.NotEmpty(t, p.RequestID())

	// another participant's answer, or a late one from an earlier exchange
	events <- realtime.CompletedEvent(string(ai.KindChat), "someone-else", "not yours", time.Now())
	assert.Never(t, func() bool { return p.State() != StateAwaiting }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, aiMessages(p))

	events <- completed(p, ai.KindChat, "yours")
	waitSettled(t, p)
	assert.Equal(t, []string{"yours"}, aiMessages(p))
}

func TestPanel_EachExchangeGetsItsOwnRequestID(t *testing.T) {
	ids := make(chan string, 2)
	p := New(ai.KindChat, func(_ context.Context, requestID, _ string) (string, error) {
		ids <- requestID
		return "ok", nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(p.Close)
	go p.Run(ctx, nil)

	require.True(t, p.Submit(ctx, "one"))
	first := <-ids
	assert.Equal(t, first, p.RequestID())
	waitSettled(t, p)

	require.True(t, p.Submit(ctx, "two"))
	second := <-ids
	assert.NotEqual(t, first, second)
}
