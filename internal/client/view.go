package client

import (
	"context"
)

// MessageSender is the send path's view of the backend.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, text, replyToID string) (Message, error)
}

// ConversationView binds one open conversation's timeline to the backend:
// sends go through the optimistic flow, polls feed the same timeline.
type ConversationView struct {
	conversationID string
	userID         string
	timeline       *Timeline
	sender         MessageSender
	poller         *Poller
}

// NewConversationView wires a view over api for the given conversation.
// Call StartPolling to begin receiving messages.
func NewConversationView(api *APIClient, conversationID, userID string) *ConversationView {
	timeline := NewTimeline()
	return &ConversationView{
		conversationID: conversationID,
		userID:         userID,
		timeline:       timeline,
		sender:         api,
		poller:         NewPoller(api, timeline, conversationID),
	}
}

// Send appends an optimistic entry, posts the message, and reconciles: the
// placeholder is replaced by the confirmed message on success and removed on
// failure.
func (v *ConversationView) Send(ctx context.Context, text, replyToID string) (Message, error) {
	pending := v.timeline.AppendOptimistic(v.conversationID, v.userID, text)

	confirmed, err := v.sender.SendMessage(ctx, v.conversationID, text, replyToID)
	if err != nil {
		v.timeline.Fail(pending.ID)
		return Message{}, err
	}

	v.timeline.Confirm(pending.ID, confirmed)
	return confirmed, nil
}

func (v *ConversationView) StartPolling(ctx context.Context) {
	v.poller.Start(ctx)
}

func (v *ConversationView) StopPolling() {
	v.poller.Stop()
}

func (v *ConversationView) Timeline() *Timeline {
	return v.timeline
}
