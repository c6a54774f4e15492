package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	reply Message
	err   error
	sent  []string
}

func (f *fakeSender) SendMessage(_ context.Context, _, text, _ string) (Message, error) {
	f.sent = append(f.sent, text)
	if f.err != nil {
		return Message{}, f.err
	}
	return f.reply, nil
}

func TestConversationView_SendConfirmsOptimisticEntry(t *testing.T) {
	confirmed := Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "user-1",
		Text:           "hi",
		CreatedAt:      time.Now().Add(time.Second),
	}
	sender := &fakeSender{reply: confirmed}
	view := &ConversationView{
		conversationID: "conv-1",
		userID:         "user-1",
		timeline:       NewTimeline(),
		sender:         sender,
	}

	got, err := view.Send(context.Background(), "hi", "")

	require.NoError(t, err)
	assert.Equal(t, "msg-1", got.ID)

	msgs := view.Timeline().Messages()
	require.Len(t, msgs, 1, "pending entry replaced, not duplicated")
	assert.Equal(t, "msg-1", msgs[0].ID)
	assert.False(t, msgs[0].Pending)

	// The poll later returns the same message.
	assert.False(t, view.Timeline().Observe(confirmed))
	assert.Equal(t, 1, view.Timeline().Len())
}

func TestConversationView_SendFailureRemovesEntry(t *testing.T) {
	sender := &fakeSender{err: errors.New("backend down")}
	view := &ConversationView{
		conversationID: "conv-1",
		userID:         "user-1",
		timeline:       NewTimeline(),
		sender:         sender,
	}

	_, err := view.Send(context.Background(), "hi", "")

	require.Error(t, err)
	assert.Equal(t, 0, view.Timeline().Len())
	assert.Equal(t, []string{"hi"}, sender.sent)
}
