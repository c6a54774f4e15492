package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"

	"securechat/internal/dbmysql"
)

// MessageQuery narrows a history fetch. Before/After reference message ids;
// a reference that no longer exists is silently ignored.
type MessageQuery struct {
	Limit  int
	Offset int
	Before string
	After  string
}

type ChatRepository interface {
	IsActiveParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	CreateConversation(ctx context.Context, conv *dbmysql.Conversation, participants []*dbmysql.ConversationParticipant) error
	GetConversation(ctx context.Context, conversationID string) (*dbmysql.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]*dbmysql.Conversation, int64, error)

	AddParticipant(ctx context.Context, participant *dbmysql.ConversationParticipant) error
	RemoveParticipant(ctx context.Context, conversationID, userID string) error

	SaveMessage(ctx context.Context, msg *dbmysql.Message) error
	FetchMessages(ctx context.Context, conversationID string, q MessageQuery) ([]*dbmysql.Message, int64, error)
}

type chatRepo struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) IsActiveParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&dbmysql.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// CreateConversation inserts the conversation together with its initial
// participant set in one transaction.
func (r *chatRepo) CreateConversation(ctx context.Context, conv *dbmysql.Conversation, participants []*dbmysql.ConversationParticipant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, p := range participants {
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *chatRepo) GetConversation(ctx context.Context, conversationID string) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepo) ListConversations(ctx context.Context, userID string, limit, offset int) ([]*dbmysql.Conversation, int64, error) {
	memberOf := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&dbmysql.Conversation{}).
			Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
			Where("cp.user_id = ? AND cp.left_at IS NULL", userID)
	}

	var total int64
	if err := memberOf().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var convs []*dbmysql.Conversation
	err := memberOf().
		Order("conversations.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&convs).Error
	return convs, total, err
}

// AddParticipant inserts a membership row, or clears left_at when the pair
// already has a historical row (rejoin never duplicates).
func (r *chatRepo) AddParticipant(ctx context.Context, participant *dbmysql.ConversationParticipant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing dbmysql.ConversationParticipant
		err := tx.Where("conversation_id = ? AND user_id = ?", participant.ConversationID, participant.UserID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(participant).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).
			Updates(map[string]interface{}{"left_at": nil, "joined_at": participant.JoinedAt}).Error
	})
}

func (r *chatRepo) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	result := r.db.WithContext(ctx).
		Model(&dbmysql.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		Update("left_at", sql.NullTime{Time: time.Now().UTC(), Valid: true})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveMessage inserts the message row and bumps the conversation's
// last-message pointer in a single transaction: both commit or neither does.
func (r *chatRepo) SaveMessage(ctx context.Context, msg *dbmysql.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&dbmysql.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"last_message_at": msg.CreatedAt,
				"updated_at":      msg.CreatedAt,
			}).Error
	})
}

// FetchMessages returns non-deleted rows ascending by creation time, plus the
// total non-deleted count for the conversation.
func (r *chatRepo) FetchMessages(ctx context.Context, conversationID string, q MessageQuery) ([]*dbmysql.Message, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Where("conversation_id = ? AND deleted_at IS NULL", conversationID)

	if ts, ok := r.resolveBoundary(ctx, conversationID, q.Before); ok {
		query = query.Where("created_at < ?", ts)
	}
	if ts, ok := r.resolveBoundary(ctx, conversationID, q.After); ok {
		query = query.Where("created_at > ?", ts)
	}

	var messages []*dbmysql.Message
	err := query.
		Order("created_at ASC").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = r.db.WithContext(ctx).
		Model(&dbmysql.Message{}).
		Where("conversation_id = ? AND deleted_at IS NULL", conversationID).
		Count(&total).Error
	return messages, total, err
}

// resolveBoundary turns a message id into its creation timestamp. A missing
// reference drops the boundary rather than failing the fetch.
func (r *chatRepo) resolveBoundary(ctx context.Context, conversationID, messageID string) (time.Time, bool) {
	if messageID == "" {
		return time.Time{}, false
	}
	var msg dbmysql.Message
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("id = ? AND conversation_id = ?", messageID, conversationID).
		First(&msg).Error
	if err != nil {
		return time.Time{}, false
	}
	return msg.CreatedAt, true
}
