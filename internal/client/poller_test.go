package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeed struct {
	mu      sync.Mutex
	batches [][]Message
	errs    []error
	afters  []string
	calls   int
}

func (f *fakeFeed) FetchSince(_ context.Context, _ string, afterID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afters = append(f.afters, afterID)
	i := f.calls
	f.calls++

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var msgs []Message
	if i < len(f.batches) {
		msgs = f.batches[i]
	}
	return msgs, err
}

func (f *fakeFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPoller_PollOnceFeedsTimeline(t *testing.T) {
	base := time.Now()
	feed := &fakeFeed{
		batches: [][]Message{{
			{ID: "msg-1", ConversationID: "conv-1", SenderID: "a", Text: "one", CreatedAt: base},
			{ID: "msg-2", ConversationID: "conv-1", SenderID: "b", Text: "two", CreatedAt: base.Add(time.Second)},
		}},
	}
	tl := NewTimeline()
	p := NewPoller(feed, tl, "conv-1")

	next := p.PollOnce(context.Background())

	assert.Equal(t, defaultPollInterval, next)
	assert.Equal(t, 2, tl.Len())
	require.Len(t, feed.afters, 1)
	assert.Equal(t, "", feed.afters[0], "first poll has no cursor")

	// The second poll resumes from the newest confirmed id.
	p.PollOnce(context.Background())
	require.Len(t, feed.afters, 2)
	assert.Equal(t, "msg-2", feed.afters[1])
}

func TestPoller_PollOnceBackoff(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{
			name: "rate limited",
			err:  &APIError{Status: http.StatusTooManyRequests, Code: "RATE_LIMITED"},
			want: rateLimitPollInterval,
		},
		{
			name: "server error",
			err:  &APIError{Status: http.StatusServiceUnavailable, Code: "TRANSIENT"},
			want: errorPollInterval,
		},
		{
			name: "network error",
			err:  errors.New("connection refused"),
			want: errorPollInterval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &fakeFeed{errs: []error{tt.err}}
			p := NewPoller(feed, NewTimeline(), "conv-1")

			assert.Equal(t, tt.want, p.PollOnce(context.Background()))
		})
	}
}

func TestPoller_StartAndStop(t *testing.T) {
	feed := &fakeFeed{}
	p := NewPoller(feed, NewTimeline(), "conv-1")
	p.SetIntervals(time.Millisecond, time.Millisecond, time.Millisecond)

	p.Start(context.Background())
	require.Eventually(t, func() bool { return feed.callCount() >= 2 },
		2*time.Second, time.Millisecond)

	p.Stop()
	settled := feed.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, feed.callCount(), "no polls after Stop")
}

func TestPoller_StopWithoutStart(t *testing.T) {
	p := NewPoller(&fakeFeed{}, NewTimeline(), "conv-1")
	p.Stop()
}
