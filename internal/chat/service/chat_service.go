package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"securechat/internal/chat/repository"
	"securechat/internal/common"
	"securechat/internal/crypto"
	"securechat/internal/dbmysql"
)

// DecryptFailedPlaceholder substitutes the body of a message whose envelope
// no longer authenticates (master key changed, row corrupted). The rest of
// the conversation still renders.
const DecryptFailedPlaceholder = "[unable to decrypt]"

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// Message is the decrypted view handed to the transport layer. Ciphertext
// never leaves the service.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Text           string
	ReplyToID      string
	CreatedAt      time.Time
	EditedAt       *time.Time
}

type MessagePage struct {
	Messages []*Message
	HasMore  bool
	Total    int64
}

type Conversation struct {
	ID            string
	Name          string
	Type          dbmysql.ConversationType
	LastMessageID string
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ConversationPage struct {
	Conversations []*Conversation
	HasMore       bool
	Total         int64
}

// ChatService defines the interface exposed to the handler layer. It owns the
// encrypt-before-write / decrypt-after-read boundary: no other component reads
// ciphertext or holds conversation keys.
type ChatService interface {
	SendMessage(ctx context.Context, conversationID, senderID, text, replyToID string) (*Message, error)
	GetMessages(ctx context.Context, conversationID, callerID string, q repository.MessageQuery) (*MessagePage, error)

	CreateConversation(ctx context.Context, creatorID, conversationID, name string, convType dbmysql.ConversationType, participantIDs []string) (*Conversation, error)
	ListConversations(ctx context.Context, userID string, limit, offset int) (*ConversationPage, error)

	JoinConversation(ctx context.Context, conversationID, userID string) error
	LeaveConversation(ctx context.Context, conversationID, userID string) error
}

type chatService struct {
	repo repository.ChatRepository
	keys *crypto.KeyProvider
}

// Constructor used in DI/wire
func NewChatService(repo repository.ChatRepository, keys *crypto.KeyProvider) ChatService {
	return &chatService{repo: repo, keys: keys}
}

// SendMessage encrypts and persists one message: participant gate, derive the
// conversation key, seal the body, then insert the row and bump the
// conversation's last-message pointer atomically.
//
// The stored timestamp is server-assigned; the client's optimistic timestamp
// is replaced on confirmation.
func (s *chatService) SendMessage(ctx context.Context, conversationID, senderID, text, replyToID string) (*Message, error) {
	if conversationID == "" {
		return nil, common.InvalidArg("conversation ID cannot be empty")
	}
	if senderID == "" {
		return nil, common.InvalidArg("sender ID cannot be empty")
	}
	if text == "" {
		return nil, common.InvalidArg("message text cannot be empty")
	}

	active, err := s.repo.IsActiveParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, common.Transient("participant lookup failed", err)
	}
	if !active {
		return nil, common.ErrNotAuthorized
	}

	key := s.keys.ConversationKey(conversationID)
	envelope, err := crypto.Encrypt(text, key)
	if err != nil {
		return nil, err
	}

	row := &dbmysql.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Ciphertext:     envelope.Ciphertext,
		IV:             envelope.IV,
		CreatedAt:      time.Now().UTC(),
	}
	if replyToID != "" {
		row.ReplyToID = sql.NullString{String: replyToID, Valid: true}
	}

	if err := s.repo.SaveMessage(ctx, row); err != nil {
		return nil, common.Transient("failed to persist message", err)
	}

	// The caller already has the plaintext; no decrypt round-trip.
	return &Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Text:           text,
		ReplyToID:      replyToID,
		CreatedAt:      row.CreatedAt,
	}, nil
}

// GetMessages returns a page of decrypted history. The key is derived once
// for the batch; a row that fails to authenticate degrades to a placeholder
// instead of aborting the page.
func (s *chatService) GetMessages(ctx context.Context, conversationID, callerID string, q repository.MessageQuery) (*MessagePage, error) {
	if conversationID == "" {
		return nil, common.InvalidArg("conversation ID is required")
	}
	if callerID == "" {
		return nil, common.InvalidArg("caller ID is required")
	}

	active, err := s.repo.IsActiveParticipant(ctx, conversationID, callerID)
	if err != nil {
		return nil, common.Transient("participant lookup failed", err)
	}
	if !active {
		return nil, common.ErrNotAuthorized
	}

	if q.Limit <= 0 {
		q.Limit = defaultMessageLimit
	}
	if q.Limit > maxMessageLimit {
		q.Limit = maxMessageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	rows, total, err := s.repo.FetchMessages(ctx, conversationID, q)
	if err != nil {
		return nil, common.Transient("failed to fetch messages", err)
	}

	key := s.keys.ConversationKey(conversationID)

	messages := make([]*Message, 0, len(rows))
	for _, row := range rows {
		text, err := crypto.Decrypt(row.Ciphertext, row.IV, key)
		if err != nil {
			if common.CodeOf(err) == common.CodeInvalidKeyLength {
				// Configuration bug, not row damage. Fail loudly.
				return nil, err
			}
			log.Printf("failed to decrypt message %s in conversation %s: %v", row.ID, conversationID, err)
			text = DecryptFailedPlaceholder
		}

		msg := &Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			SenderID:       row.SenderID,
			Text:           text,
			CreatedAt:      row.CreatedAt,
		}
		if row.ReplyToID.Valid {
			msg.ReplyToID = row.ReplyToID.String
		}
		if row.EditedAt.Valid {
			edited := row.EditedAt.Time
			msg.EditedAt = &edited
		}
		messages = append(messages, msg)
	}

	return &MessagePage{
		Messages: messages,
		HasMore:  int64(q.Offset+len(messages)) < total,
		Total:    total,
	}, nil
}

// CreateConversation creates the conversation atomically with its initial
// participant set. The creator joins as admin; duplicates in participantIDs
// are collapsed.
func (s *chatService) CreateConversation(ctx context.Context, creatorID, conversationID, name string, convType dbmysql.ConversationType, participantIDs []string) (*Conversation, error) {
	if conversationID == "" {
		return nil, common.InvalidArg("conversation ID cannot be empty")
	}
	if creatorID == "" {
		return nil, common.InvalidArg("creator ID cannot be empty")
	}
	if convType != dbmysql.ConversationDirect && convType != dbmysql.ConversationGroup {
		convType = dbmysql.ConversationDirect
	}

	if _, err := s.repo.GetConversation(ctx, conversationID); err == nil {
		return nil, common.ErrConversationExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.Transient("conversation lookup failed", err)
	}

	now := time.Now().UTC()
	conv := &dbmysql.Conversation{
		ID:        conversationID,
		Name:      name,
		Type:      convType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	participants := []*dbmysql.ConversationParticipant{{
		ConversationID: conversationID,
		UserID:         creatorID,
		Role:           dbmysql.RoleAdmin,
		JoinedAt:       now,
	}}
	seen := map[string]bool{creatorID: true}
	for _, id := range participantIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, &dbmysql.ConversationParticipant{
			ConversationID: conversationID,
			UserID:         id,
			Role:           dbmysql.RoleMember,
			JoinedAt:       now,
		})
	}

	if err := s.repo.CreateConversation(ctx, conv, participants); err != nil {
		return nil, common.Transient("failed to create conversation", err)
	}

	return toConversation(conv), nil
}

func (s *chatService) ListConversations(ctx context.Context, userID string, limit, offset int) (*ConversationPage, error) {
	if userID == "" {
		return nil, common.InvalidArg("user ID is required")
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.repo.ListConversations(ctx, userID, limit, offset)
	if err != nil {
		return nil, common.Transient("failed to list conversations", err)
	}

	convs := make([]*Conversation, 0, len(rows))
	for _, row := range rows {
		convs = append(convs, toConversation(row))
	}

	return &ConversationPage{
		Conversations: convs,
		HasMore:       int64(offset+len(convs)) < total,
		Total:         total,
	}, nil
}

func (s *chatService) JoinConversation(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" || userID == "" {
		return common.InvalidArg("conversation ID and user ID are required")
	}

	if _, err := s.repo.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrConversationNotFound
		}
		return common.Transient("conversation lookup failed", err)
	}

	return s.repo.AddParticipant(ctx, &dbmysql.ConversationParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           dbmysql.RoleMember,
		JoinedAt:       time.Now().UTC(),
	})
}

func (s *chatService) LeaveConversation(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" || userID == "" {
		return common.InvalidArg("conversation ID and user ID are required")
	}

	err := s.repo.RemoveParticipant(ctx, conversationID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.NotFound("no active membership for this conversation")
	}
	return err
}

func toConversation(row *dbmysql.Conversation) *Conversation {
	conv := &Conversation{
		ID:        row.ID,
		Name:      row.Name,
		Type:      row.Type,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.LastMessageID.Valid {
		conv.LastMessageID = row.LastMessageID.String
	}
	if row.LastMessageAt.Valid {
		at := row.LastMessageAt.Time
		conv.LastMessageAt = &at
	}
	return conv
}
