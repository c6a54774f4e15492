package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline_OptimisticSendConfirmAndRedelivery(t *testing.T) {
	tl := NewTimeline()

	pending := tl.AppendOptimistic("conv-1", "user-1", "hi")
	require.True(t, pending.Pending)
	require.Equal(t, 1, tl.Len())

	confirmed := Message{
		ID:             "msg-42",
		ConversationID: "conv-1",
		SenderID:       "user-1",
		Text:           "hi",
		CreatedAt:      pending.CreatedAt.Add(150 * time.Millisecond),
	}
	tl.Confirm(pending.ID, confirmed)

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-42", msgs[0].ID)
	assert.False(t, msgs[0].Pending)

	// A later poll redelivers the same message; it must not duplicate.
	assert.False(t, tl.Observe(confirmed))
	assert.Equal(t, 1, tl.Len())
}

func TestTimeline_ConfirmAfterPollAlreadyDelivered(t *testing.T) {
	tl := NewTimeline()

	// Slow confirmation: the poll wins the race and delivers the message
	// under its server id before the send response arrives.
	pending := tl.AppendOptimistic("conv-1", "user-1", "hi")
	polled := Message{
		ID: "msg-7", ConversationID: "conv-1", SenderID: "user-1", Text: "hi",
		CreatedAt: pending.CreatedAt.Add(10 * time.Second),
	}
	require.True(t, tl.Observe(polled))
	require.Equal(t, 2, tl.Len())

	tl.Confirm(pending.ID, polled)

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-7", msgs[0].ID)
}

func TestTimeline_FailRemovesOptimisticEntry(t *testing.T) {
	tl := NewTimeline()
	base := time.Now()
	tl.Observe(Message{ID: "msg-1", ConversationID: "c", SenderID: "a", Text: "one", CreatedAt: base})

	pending := tl.AppendOptimistic("c", "b", "doomed")
	require.Equal(t, 2, tl.Len())

	tl.Fail(pending.ID)
	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-1", msgs[0].ID)

	// Failing an unknown id is a no-op.
	tl.Fail("local-missing")
	assert.Equal(t, 1, tl.Len())
}

func TestTimeline_ObserveRejectsNearDuplicateFromSameSender(t *testing.T) {
	tl := NewTimeline()
	base := time.Now()

	require.True(t, tl.Observe(Message{
		ID: "msg-1", ConversationID: "c", SenderID: "a", Text: "hello", CreatedAt: base,
	}))

	// Same conversation, sender, and text close in time: duplicate.
	assert.False(t, tl.Observe(Message{
		ID: "msg-2", ConversationID: "c", SenderID: "a", Text: "hello", CreatedAt: base.Add(3 * time.Second),
	}))

	// Outside the window the repeat is a genuine new message.
	assert.True(t, tl.Observe(Message{
		ID: "msg-3", ConversationID: "c", SenderID: "a", Text: "hello", CreatedAt: base.Add(10 * time.Second),
	}))

	// Different sender within the window is not a duplicate.
	assert.True(t, tl.Observe(Message{
		ID: "msg-4", ConversationID: "c", SenderID: "b", Text: "hello", CreatedAt: base.Add(time.Second),
	}))

	assert.Equal(t, 3, tl.Len())
}

func TestTimeline_SortsAscendingByCreatedAt(t *testing.T) {
	tl := NewTimeline()
	base := time.Now()

	tl.Observe(Message{ID: "msg-3", ConversationID: "c", SenderID: "a", Text: "three", CreatedAt: base.Add(2 * time.Hour)})
	tl.Observe(Message{ID: "msg-1", ConversationID: "c", SenderID: "a", Text: "one", CreatedAt: base})
	tl.Observe(Message{ID: "msg-2", ConversationID: "c", SenderID: "a", Text: "two", CreatedAt: base.Add(time.Hour)})

	var ids []string
	for _, m := range tl.Messages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"msg-1", "msg-2", "msg-3"}, ids)
}

func TestTimeline_ConfirmResortsWithServerTimestamp(t *testing.T) {
	tl := NewTimeline()
	base := time.Now()
	tl.Observe(Message{ID: "msg-1", ConversationID: "c", SenderID: "a", Text: "first", CreatedAt: base})

	pending := tl.AppendOptimistic("c", "b", "reply")

	// The server stamped it before msg-1; confirmation moves it ahead.
	tl.Confirm(pending.ID, Message{
		ID: "msg-0", ConversationID: "c", SenderID: "b", Text: "reply", CreatedAt: base.Add(-time.Minute),
	})

	msgs := tl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg-0", msgs[0].ID)
	assert.Equal(t, "msg-1", msgs[1].ID)
}

func TestTimeline_LastConfirmedIDSkipsPending(t *testing.T) {
	tl := NewTimeline()
	assert.Equal(t, "", tl.LastConfirmedID())

	base := time.Now().Add(-time.Minute)
	tl.Observe(Message{ID: "msg-1", ConversationID: "c", SenderID: "a", Text: "one", CreatedAt: base})
	tl.Observe(Message{ID: "msg-2", ConversationID: "c", SenderID: "a", Text: "two", CreatedAt: base.Add(time.Second)})
	assert.Equal(t, "msg-2", tl.LastConfirmedID())

	tl.AppendOptimistic("c", "b", "pending")
	assert.Equal(t, "msg-2", tl.LastConfirmedID())
}

func TestTimeline_RenderSeparatorsAndGrouping(t *testing.T) {
	tl := NewTimeline()
	day1 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	day2 := time.Date(2025, 3, 11, 8, 0, 0, 0, time.Local)

	tl.Observe(Message{ID: "m1", ConversationID: "c", SenderID: "a", Text: "1", CreatedAt: day1})
	tl.Observe(Message{ID: "m2", ConversationID: "c", SenderID: "a", Text: "2", CreatedAt: day1.Add(2 * time.Minute)})
	tl.Observe(Message{ID: "m3", ConversationID: "c", SenderID: "a", Text: "3", CreatedAt: day1.Add(20 * time.Minute)})
	tl.Observe(Message{ID: "m4", ConversationID: "c", SenderID: "b", Text: "4", CreatedAt: day1.Add(21 * time.Minute)})
	tl.Observe(Message{ID: "m5", ConversationID: "c", SenderID: "b", Text: "5", CreatedAt: day2})

	items := tl.Render()
	require.Len(t, items, 7)

	assert.Equal(t, "2025-03-10", items[0].DateSeparator)
	assert.Equal(t, "m1", items[1].Message.ID)
	assert.False(t, items[1].Grouped)
	assert.Equal(t, "m2", items[2].Message.ID)
	assert.True(t, items[2].Grouped, "same sender within five minutes")
	assert.Equal(t, "m3", items[3].Message.ID)
	assert.False(t, items[3].Grouped, "gap exceeds five minutes")
	assert.Equal(t, "m4", items[4].Message.ID)
	assert.False(t, items[4].Grouped, "sender changed")
	assert.Equal(t, "2025-03-11", items[5].DateSeparator)
	assert.Equal(t, "m5", items[6].Message.ID)
	assert.False(t, items[6].Grouped, "new day starts a new group")
}
