// Package client implements the chat client used by the CLI: a REST API
// client, a per-conversation polling loop, and the timeline that reconciles
// optimistic local messages with server-confirmed and polled ones.
package client

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is the client-side view of a chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	ReplyToID      string    `json:"replyToId,omitempty"`
	SenderName     string    `json:"senderName,omitempty"`
	SenderAvatar   string    `json:"senderAvatar,omitempty"`

	// Pending marks a local optimistic entry the server has not confirmed.
	Pending bool `json:"-"`
}

// duplicateWindow guards against the poll re-observing a message this client
// just sent before its optimistic entry was replaced.
const duplicateWindow = 5 * time.Second

// groupingWindow groups consecutive same-sender messages for rendering.
const groupingWindow = 5 * time.Minute

// Timeline holds one open conversation view's messages, keyed by id and
// ordered ascending by creation time. All methods are safe for concurrent
// use by the poller and the send path.
type Timeline struct {
	mu       sync.Mutex
	messages []Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// AppendOptimistic inserts a local placeholder with a temporary id and the
// current local timestamp, before the server has confirmed the send. The
// temporary id is returned for the later Confirm/Fail call.
func (t *Timeline) AppendOptimistic(conversationID, senderID, text string) Message {
	msg := Message{
		ID:             "local-" + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now(),
		Pending:        true,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	t.sortLocked()
	return msg
}

// Confirm replaces the optimistic entry with the server-returned message,
// which carries the authoritative id and timestamp.
func (t *Timeline) Confirm(tempID string, confirmed Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// If the poll already delivered the confirmed message, only the
	// placeholder has to go.
	if t.findLocked(confirmed.ID) >= 0 {
		if i := t.findLocked(tempID); i >= 0 {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
		}
		return
	}

	if i := t.findLocked(tempID); i >= 0 {
		t.messages[i] = confirmed
	} else {
		t.messages = append(t.messages, confirmed)
	}
	t.sortLocked()
}

// Fail removes the optimistic entry after a failed send. Removal only; the
// remaining order is untouched.
func (t *Timeline) Fail(tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i := t.findLocked(tempID); i >= 0 {
		t.messages = append(t.messages[:i], t.messages[i+1:]...)
	}
}

// Observe inserts an externally observed (polled) message. It reports false
// for duplicates: an entry with the same id, or one from the same sender in
// the same conversation with the same text within the duplicate window.
func (t *Timeline) Observe(msg Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.findLocked(msg.ID) >= 0 {
		return false
	}
	for _, existing := range t.messages {
		if existing.ConversationID == msg.ConversationID &&
			existing.SenderID == msg.SenderID &&
			existing.Text == msg.Text &&
			absDuration(existing.CreatedAt.Sub(msg.CreatedAt)) <= duplicateWindow {
			return false
		}
	}

	t.messages = append(t.messages, msg)
	t.sortLocked()
	return true
}

// Messages returns a snapshot of the current sequence.
func (t *Timeline) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// LastConfirmedID returns the newest non-pending message id, the poll cursor.
func (t *Timeline) LastConfirmedID() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.messages) - 1; i >= 0; i-- {
		if !t.messages[i].Pending {
			return t.messages[i].ID
		}
	}
	return ""
}

func (t *Timeline) findLocked(id string) int {
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// sortLocked re-sorts ascending by creation time. Stable: ties keep
// insertion order.
func (t *Timeline) sortLocked() {
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// RenderedItem is one row of the conversation view: either a date separator
// or a message, with the grouping flag precomputed. Presentation only; the
// timeline data is unchanged.
type RenderedItem struct {
	DateSeparator string // local date label, set on separator rows
	Message       *Message
	Grouped       bool // rendered without sender header
}

// Render derives the display sequence: a date separator precedes the first
// message of each local calendar day, and consecutive same-sender messages
// within five minutes are grouped.
func (t *Timeline) Render() []RenderedItem {
	msgs := t.Messages()

	items := make([]RenderedItem, 0, len(msgs))
	var prev *Message
	for i := range msgs {
		msg := &msgs[i]
		if prev == nil || localDate(prev.CreatedAt) != localDate(msg.CreatedAt) {
			items = append(items, RenderedItem{DateSeparator: localDate(msg.CreatedAt)})
		}
		grouped := prev != nil &&
			prev.SenderID == msg.SenderID &&
			localDate(prev.CreatedAt) == localDate(msg.CreatedAt) &&
			msg.CreatedAt.Sub(prev.CreatedAt) <= groupingWindow
		items = append(items, RenderedItem{Message: msg, Grouped: grouped})
		prev = msg
	}
	return items
}

func localDate(ts time.Time) string {
	return fmt.Sprintf("%04d-%02d-%02d", ts.Local().Year(), ts.Local().Month(), ts.Local().Day())
}
