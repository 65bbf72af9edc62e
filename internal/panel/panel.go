// Package panel reconciles the two ways an AI answer reaches a client: the
// direct return of a dispatch and the room's completion broadcast. Both are
// merged by one loop with content based dedup, so either may arrive first,
// twice or not at all. Each exchange carries its own request id and
// broadcasts for any other request are ignored.
package panel

import (
	"context"
	"strings"
	"sync"

	"github.com/suPer8Hu/collabnote/internal/ai"
	"github.com/suPer8Hu/collabnote/internal/common"
	"github.com/suPer8Hu/collabnote/internal/realtime"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type Message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  Sender `json:"sender"`
}

type State string

const (
	StateIdle     State = "idle"
	StateAwaiting State = "awaiting-response"
	StateSettled  State = "settled"
)

// DispatchFunc sends input for the panel's kind under requestID and returns
// the direct result. The request id must reach the server unchanged, it is
// how the completion broadcast is matched to the exchange.
type DispatchFunc func(ctx context.Context, requestID, input string) (string, error)

type completion struct {
	exchange int
	result   string
	err      error
}

type Panel struct {
	kind     ai.Kind
	dispatch DispatchFunc
	direct   chan completion
	done     chan struct{}

	mu        sync.Mutex
	state     State
	messages  []Message
	exchange  int
	requestID string
	settled   chan struct{}
	closed    bool
	once      sync.Once
}

func New(kind ai.Kind, dispatch DispatchFunc) *Panel {
	settled := make(chan struct{})
	close(settled)
	return &Panel{
		kind:     kind,
		dispatch: dispatch,
		direct:   make(chan completion, 1),
		done:     make(chan struct{}),
		state:    StateIdle,
		settled:  settled,
	}
}

// Submit starts a new exchange. It returns false when input is blank, a
// request is already in flight or the panel is closed.
func (p *Panel) Submit(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}

	p.mu.Lock()
	if p.closed || p.state == StateAwaiting {
		p.mu.Unlock()
		return false
	}
	p.exchange++
	exchange := p.exchange
	requestID := common.MustULID()
	p.requestID = requestID
	p.messages = []Message{{ID: common.MustULID(), Content: input, Sender: SenderUser}}
	p.state = StateAwaiting
	p.settled = make(chan struct{})
	p.mu.Unlock()

	go func() {
		result, err := p.dispatch(ctx, requestID, input)
		select {
		case p.direct <- completion{exchange: exchange, result: result, err: err}:
		case <-p.done:
		}
	}()
	return true
}

// Run merges direct results and room events until ctx is done or the panel
// is closed. events may be nil when the room stream is unavailable.
func (p *Panel) Run(ctx context.Context, events <-chan realtime.Event) {
	want := realtime.CompletedEventType(string(p.kind))
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case c := <-p.direct:
			p.onDirect(c)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Type != want || ev.Data.Result == "" {
				continue
			}
			p.onEvent(ev)
		}
	}
}

func (p *Panel) onDirect(c completion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || c.exchange != p.exchange {
		return
	}
	if c.err != nil {
		p.appendAI(p.kind.Apology())
		p.settle()
		return
	}
	p.complete(c.result)
}

// onEvent takes a broadcast only for the current exchange's request.
func (p *Panel) onEvent(ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.requestID == "" || ev.Data.RequestID != p.requestID {
		return
	}
	p.complete(ev.Data.Result)
}

// complete appends content unless it repeats the latest AI message, and
// settles the panel either way. Requires p.mu.
func (p *Panel) complete(content string) {
	if last, ok := p.lastAI(); !ok || last != content {
		p.appendAI(content)
	}
	p.settle()
}

// appendAI requires p.mu.
func (p *Panel) appendAI(content string) {
	p.messages = append(p.messages, Message{ID: common.MustULID(), Content: content, Sender: SenderAI})
}

// settle requires p.mu.
func (p *Panel) settle() {
	p.state = StateSettled
	select {
	case <-p.settled:
	default:
		close(p.settled)
	}
}

// lastAI requires p.mu.
func (p *Panel) lastAI() (string, bool) {
	for i := len(p.messages) - 1; i >= 0; i-- {
		if p.messages[i].Sender == SenderAI {
			return p.messages[i].Content, true
		}
	}
	return "", false
}

func (p *Panel) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

// RequestID is the id sent with the current exchange, empty before the
// first Submit.
func (p *Panel) RequestID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requestID
}

func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// WaitSettled blocks until the current exchange settles.
func (p *Panel) WaitSettled(ctx context.Context) error {
	p.mu.Lock()
	settled := p.settled
	p.mu.Unlock()
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return context.Canceled
	}
}

// Close stops all further updates; results still in flight are dropped.
func (p *Panel) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
}
