package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"securechat/internal/chat/handler/mocks"
	"securechat/internal/chat/repository"
	"securechat/internal/chat/service"
	"securechat/internal/common"
)

func newTestHandler(t *testing.T) (*mux.Router, *mocks.MockChatService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockChatService(ctrl)

	router := mux.NewRouter()
	NewChatHandler(mockService, nil).RegisterRoutes(router)
	return router, mockService
}

func doRequest(router *mux.Router, method, target, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req = req.WithContext(common.ContextWithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSendMessage(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		userID       string
		body         map[string]interface{}
		mockSetup    func(svc *mocks.MockChatService)
		expectStatus int
	}{
		{
			name:   "successful send returns 201",
			userID: "user-456",
			body:   map[string]interface{}{"conversationId": "conv-123", "text": "hi", "createdAt": now.Format(time.RFC3339)},
			mockSetup: func(svc *mocks.MockChatService) {
				svc.EXPECT().
					SendMessage(gomock.Any(), "conv-123", "user-456", "hi", "").
					Return(&service.Message{
						ID:             "msg-1",
						ConversationID: "conv-123",
						SenderID:       "user-456",
						Text:           "hi",
						CreatedAt:      now,
					}, nil)
			},
			expectStatus: http.StatusCreated,
		},
		{
			name:         "missing text returns 400",
			userID:       "user-456",
			body:         map[string]interface{}{"conversationId": "conv-123"},
			mockSetup:    func(svc *mocks.MockChatService) {},
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "missing identity returns 401",
			body:         map[string]interface{}{"conversationId": "conv-123", "text": "hi"},
			mockSetup:    func(svc *mocks.MockChatService) {},
			expectStatus: http.StatusUnauthorized,
		},
		{
			name:   "non-participant returns 403",
			userID: "intruder",
			body:   map[string]interface{}{"conversationId": "conv-123", "text": "hi"},
			mockSetup: func(svc *mocks.MockChatService) {
				svc.EXPECT().
					SendMessage(gomock.Any(), "conv-123", "intruder", "hi", "").
					Return(nil, common.ErrNotAuthorized)
			},
			expectStatus: http.StatusForbidden,
		},
		{
			name:   "store outage returns 503",
			userID: "user-456",
			body:   map[string]interface{}{"conversationId": "conv-123", "text": "hi"},
			mockSetup: func(svc *mocks.MockChatService) {
				svc.EXPECT().
					SendMessage(gomock.Any(), "conv-123", "user-456", "hi", "").
					Return(nil, common.Transient("failed to persist message", assert.AnError))
			},
			expectStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, mockService := newTestHandler(t)
			tt.mockSetup(mockService)

			rec := doRequest(router, "POST", "/messages", tt.userID, tt.body)
			assert.Equal(t, tt.expectStatus, rec.Code)

			if tt.expectStatus == http.StatusCreated {
				var resp messageResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "msg-1", resp.ID)
				assert.Equal(t, "hi", resp.Text)
				assert.Equal(t, now, resp.CreatedAt)
			}
		})
	}
}

func TestGetMessages(t *testing.T) {
	router, mockService := newTestHandler(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mockService.EXPECT().
		GetMessages(gomock.Any(), "conv-123", "user-456", repository.MessageQuery{Limit: 2, After: "msg-3"}).
		Return(&service.MessagePage{
			Messages: []*service.Message{
				{ID: "msg-4", ConversationID: "conv-123", SenderID: "u1", Text: "four", CreatedAt: now},
				{ID: "msg-5", ConversationID: "conv-123", SenderID: "u1", Text: "five", CreatedAt: now.Add(time.Minute)},
			},
			HasMore: false,
			Total:   5,
		}, nil)

	rec := doRequest(router, "GET", "/conversations/conv-123/messages?limit=2&after=msg-3", "user-456", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp messagesPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "msg-4", resp.Messages[0].ID)
	assert.Equal(t, "msg-5", resp.Messages[1].ID)
	assert.Equal(t, int64(5), resp.Total)
	assert.False(t, resp.HasMore)
}

func TestGetMessages_Forbidden(t *testing.T) {
	router, mockService := newTestHandler(t)

	mockService.EXPECT().
		GetMessages(gomock.Any(), "conv-123", "outsider", gomock.Any()).
		Return(nil, common.ErrNotAuthorized)

	rec := doRequest(router, "GET", "/conversations/conv-123/messages", "outsider", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(common.CodeNotAuthorized), resp.Code)
}

func TestCreateConversation(t *testing.T) {
	t.Run("created returns 201", func(t *testing.T) {
		router, mockService := newTestHandler(t)

		mockService.EXPECT().
			CreateConversation(gomock.Any(), "creator", "conv-123", "team", gomock.Any(), []string{"alice"}).
			Return(&service.Conversation{ID: "conv-123", Name: "team"}, nil)

		rec := doRequest(router, "POST", "/conversations", "creator", map[string]interface{}{
			"conversationId": "conv-123",
			"name":           "team",
			"type":           2,
			"participantIds": []string{"alice"},
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("duplicate id returns 409", func(t *testing.T) {
		router, mockService := newTestHandler(t)

		mockService.EXPECT().
			CreateConversation(gomock.Any(), "creator", "conv-123", "", gomock.Any(), gomock.Nil()).
			Return(nil, common.ErrConversationExists)

		rec := doRequest(router, "POST", "/conversations", "creator", map[string]interface{}{
			"conversationId": "conv-123",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestListConversations(t *testing.T) {
	router, mockService := newTestHandler(t)

	mockService.EXPECT().
		ListConversations(gomock.Any(), "user-456", 10, 0).
		Return(&service.ConversationPage{
			Conversations: []*service.Conversation{{ID: "conv-123"}},
			HasMore:       false,
			Total:         1,
		}, nil)

	rec := doRequest(router, "GET", "/conversations?userId=user-456&limit=10", "user-456", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp conversationsPageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "conv-123", resp.Conversations[0].ID)
}

func TestLeaveConversation(t *testing.T) {
	router, mockService := newTestHandler(t)

	mockService.EXPECT().
		LeaveConversation(gomock.Any(), "conv-123", "user-456").
		Return(nil)

	rec := doRequest(router, "DELETE", "/conversations/conv-123/participants/user-456", "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
