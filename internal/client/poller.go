package client

import (
	"context"
	"log"
	"sync"
	"time"
)

// MessageFeed is the poller's view of the backend.
type MessageFeed interface {
	FetchSince(ctx context.Context, conversationID, afterID string) ([]Message, error)
}

// Poll intervals. The next poll is always scheduled after the current one
// settles, so fetches never overlap.
const (
	defaultPollInterval   = 5 * time.Second
	rateLimitPollInterval = 30 * time.Second
	errorPollInterval     = 10 * time.Second
)

// Poller periodically fetches new messages for one conversation and feeds
// them into the timeline. At most one fetch is in flight at any time.
type Poller struct {
	feed           MessageFeed
	timeline       *Timeline
	conversationID string

	interval          time.Duration
	rateLimitInterval time.Duration
	errorInterval     time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(feed MessageFeed, timeline *Timeline, conversationID string) *Poller {
	return &Poller{
		feed:              feed,
		timeline:          timeline,
		conversationID:    conversationID,
		interval:          defaultPollInterval,
		rateLimitInterval: rateLimitPollInterval,
		errorInterval:     errorPollInterval,
	}
}

// SetIntervals overrides the poll cadence before Start. Zero values keep the
// defaults.
func (p *Poller) SetIntervals(normal, rateLimited, onError time.Duration) {
	if normal > 0 {
		p.interval = normal
	}
	if rateLimited > 0 {
		p.rateLimitInterval = rateLimited
	}
	if onError > 0 {
		p.errorInterval = onError
	}
}

// Start polls immediately and keeps polling until Stop or ctx cancellation.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop cancels the in-flight fetch and the wait for the next one, then
// blocks until the poll loop has exited.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	for {
		next := p.PollOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-time.After(next):
		case <-ctx.Done():
			return
		}
	}
}

// PollOnce performs a single fetch, feeds any new messages into the
// timeline, and returns the delay before the next poll.
func (p *Poller) PollOnce(ctx context.Context) time.Duration {
	after := p.timeline.LastConfirmedID()
	msgs, err := p.feed.FetchSince(ctx, p.conversationID, after)

	switch {
	case ctx.Err() != nil:
		return p.errorInterval
	case IsRateLimited(err):
		return p.rateLimitInterval
	case err != nil:
		log.Printf("poll %s: %v", p.conversationID, err)
		return p.errorInterval
	}

	for _, msg := range msgs {
		p.timeline.Observe(msg)
	}
	return p.interval
}
