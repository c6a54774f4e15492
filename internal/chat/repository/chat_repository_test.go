package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"securechat/internal/dbmysql"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

func testMessage() *dbmysql.Message {
	return &dbmysql.Message{
		ID:             "msg-1",
		ConversationID: "conv-123",
		SenderID:       "user-456",
		Ciphertext:     "b64-ciphertext",
		IV:             "b64-iv",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestChatRepository_SaveMessage_CommitsBothWrites(t *testing.T) {
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewChatRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `messages`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `conversations`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveMessage(context.Background(), testMessage())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepository_SaveMessage_RollsBackOnPointerUpdateFailure(t *testing.T) {
	// The message insert must not survive a failed last-message pointer
	// update: both effects commit or neither does.
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewChatRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `messages`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `conversations`").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.SaveMessage(context.Background(), testMessage())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "transaction must roll back, not commit")
}

func TestChatRepository_SaveMessage_RollsBackOnInsertFailure(t *testing.T) {
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewChatRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `messages`").
		WillReturnError(errors.New("duplicate entry"))
	mock.ExpectRollback()

	err := repo.SaveMessage(context.Background(), testMessage())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepository_IsActiveParticipant(t *testing.T) {
	tests := []struct {
		name   string
		count  int64
		expect bool
	}{
		{name: "active row exists", count: 1, expect: true},
		{name: "no active row", count: 0, expect: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupTestDB(t)
			defer cleanup()
			repo := NewChatRepository(gormDB)

			mock.ExpectQuery("SELECT count\\(\\*\\) FROM `conversation_participants`").
				WithArgs("conv-123", "user-456").
				WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(tt.count))

			active, err := repo.IsActiveParticipant(context.Background(), "conv-123", "user-456")
			require.NoError(t, err)
			assert.Equal(t, tt.expect, active)
		})
	}
}

func TestChatRepository_FetchMessages(t *testing.T) {
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewChatRepository(gormDB)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "ciphertext", "iv", "created_at"}).
		AddRow("msg-1", "conv-123", "u1", "ct1", "iv1", now.Add(-2*time.Minute)).
		AddRow("msg-2", "conv-123", "u1", "ct2", "iv2", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT (.+) FROM `messages` WHERE conversation_id = (.+) AND deleted_at IS NULL").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `messages`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(5))

	messages, total, err := repo.FetchMessages(context.Background(), "conv-123", MessageQuery{Limit: 2})
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, "msg-1", messages[0].ID)
	assert.Equal(t, int64(5), total)
}

func TestChatRepository_FetchMessages_MissingBoundaryIgnored(t *testing.T) {
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewChatRepository(gormDB)

	// Boundary lookup misses; the fetch proceeds without a timestamp filter.
	mock.ExpectQuery("SELECT `created_at` FROM `messages`").
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectQuery("SELECT (.+) FROM `messages` WHERE conversation_id = (.+) AND deleted_at IS NULL").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `messages`").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))

	_, _, err := repo.FetchMessages(context.Background(), "conv-123", MessageQuery{Limit: 10, After: "ghost-id"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepository_CreateConversation_Transactional(t *testing.T) {
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewChatRepository(gormDB)

	conv := &dbmysql.Conversation{ID: "conv-123", Type: dbmysql.ConversationGroup}
	participants := []*dbmysql.ConversationParticipant{
		{ConversationID: "conv-123", UserID: "creator", Role: dbmysql.RoleAdmin},
		{ConversationID: "conv-123", UserID: "alice", Role: dbmysql.RoleMember},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `conversations`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `conversation_participants`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `conversation_participants`").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateConversation(context.Background(), conv, participants)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatRepository_RemoveParticipant_NoActiveRow(t *testing.T) {
	gormDB, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewChatRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `conversation_participants`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.RemoveParticipant(context.Background(), "conv-123", "already-gone")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
