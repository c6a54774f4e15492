package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"securechat/internal/chat/repository"
	"securechat/internal/chat/service"
	"securechat/internal/common"
	"securechat/internal/dbmysql"
)

// UserDirectory resolves sender display data for message responses.
// user.UserRepository satisfies it.
type UserDirectory interface {
	GetUserByID(ctx context.Context, userID string) (*dbmysql.User, error)
}

type ChatHandler struct {
	service service.ChatService
	users   UserDirectory
}

func NewChatHandler(svc service.ChatService, users UserDirectory) *ChatHandler {
	return &ChatHandler{service: svc, users: users}
}

// RegisterRoutes mounts the messaging endpoints on the router.
func (h *ChatHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/messages", h.SendMessage).Methods("POST")
	router.HandleFunc("/conversations", h.CreateConversation).Methods("POST")
	router.HandleFunc("/conversations", h.ListConversations).Methods("GET")
	router.HandleFunc("/conversations/{conversationId}/messages", h.GetMessages).Methods("GET")
	router.HandleFunc("/conversations/{conversationId}/participants", h.JoinConversation).Methods("POST")
	router.HandleFunc("/conversations/{conversationId}/participants/{userId}", h.LeaveConversation).Methods("DELETE")
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	CreatedAt      string `json:"createdAt"` // client's optimistic timestamp; server time is authoritative
	ReplyToID      string `json:"replyToId"`
}

type messageResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Text           string     `json:"text"`
	CreatedAt      time.Time  `json:"createdAt"`
	EditedAt       *time.Time `json:"editedAt,omitempty"`
	ReplyToID      string     `json:"replyToId,omitempty"`
	SenderName     string     `json:"senderName,omitempty"`
	SenderAvatar   string     `json:"senderAvatar,omitempty"`
}

type messagesPageResponse struct {
	Messages []messageResponse `json:"messages"`
	HasMore  bool              `json:"hasMore"`
	Total    int64             `json:"total"`
}

type createConversationRequest struct {
	ConversationID string   `json:"conversationId"`
	Name           string   `json:"name"`
	Type           int      `json:"type"`
	ParticipantIDs []string `json:"participantIds"`
}

type conversationResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	Type          int        `json:"type"`
	LastMessageID string     `json:"lastMessageId,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type conversationsPageResponse struct {
	Conversations []conversationResponse `json:"conversations"`
	HasMore       bool                   `json:"hasMore"`
	Total         int64                  `json:"total"`
}

type joinConversationRequest struct {
	UserID string `json:"userId"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "caller identity is required")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "invalid JSON body")
		return
	}
	if req.ConversationID == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "conversationId and text are required")
		return
	}

	msg, err := h.service.SendMessage(r.Context(), req.ConversationID, senderID, req.Text, req.ReplyToID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toMessageResponse(r.Context(), msg))
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	callerID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "caller identity is required")
		return
	}

	conversationID := mux.Vars(r)["conversationId"]
	params := r.URL.Query()

	q := repository.MessageQuery{
		Limit:  parseIntParam(params.Get("limit"), 0),
		Offset: parseIntParam(params.Get("offset"), 0),
		Before: params.Get("before"),
		After:  params.Get("after"),
	}

	page, err := h.service.GetMessages(r.Context(), conversationID, callerID, q)
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := messagesPageResponse{
		Messages: make([]messageResponse, 0, len(page.Messages)),
		HasMore:  page.HasMore,
		Total:    page.Total,
	}
	senders := h.resolveSenders(r.Context(), page.Messages)
	for _, msg := range page.Messages {
		mr := h.buildMessageResponse(msg, senders[msg.SenderID])
		resp.Messages = append(resp.Messages, mr)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "caller identity is required")
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "invalid JSON body")
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "conversationId is required")
		return
	}

	conv, err := h.service.CreateConversation(r.Context(), creatorID, req.ConversationID, req.Name,
		dbmysql.ConversationType(req.Type), req.ParticipantIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	userID := params.Get("userId")
	if userID == "" {
		userID, _ = common.UserIDFromContext(r.Context())
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "userId is required")
		return
	}

	page, err := h.service.ListConversations(r.Context(), userID,
		parseIntParam(params.Get("limit"), 0),
		parseIntParam(params.Get("offset"), 0))
	if err != nil {
		writeAppError(w, err)
		return
	}

	resp := conversationsPageResponse{
		Conversations: make([]conversationResponse, 0, len(page.Conversations)),
		HasMore:       page.HasMore,
		Total:         page.Total,
	}
	for _, conv := range page.Conversations {
		resp.Conversations = append(resp.Conversations, toConversationResponse(conv))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) JoinConversation(w http.ResponseWriter, r *http.Request) {
	callerID, ok := common.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "caller identity is required")
		return
	}

	var req joinConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		req.UserID = callerID
	}

	if err := h.service.JoinConversation(r.Context(), mux.Vars(r)["conversationId"], req.UserID); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) LeaveConversation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.service.LeaveConversation(r.Context(), vars["conversationId"], vars["userId"]); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// resolveSenders looks up each distinct sender once per page.
func (h *ChatHandler) resolveSenders(ctx context.Context, messages []*service.Message) map[string]*dbmysql.User {
	senders := make(map[string]*dbmysql.User)
	if h.users == nil {
		return senders
	}
	for _, msg := range messages {
		if _, seen := senders[msg.SenderID]; seen {
			continue
		}
		user, err := h.users.GetUserByID(ctx, msg.SenderID)
		if err != nil {
			senders[msg.SenderID] = nil
			continue
		}
		senders[msg.SenderID] = user
	}
	return senders
}

func (h *ChatHandler) toMessageResponse(ctx context.Context, msg *service.Message) messageResponse {
	var sender *dbmysql.User
	if h.users != nil {
		sender, _ = h.users.GetUserByID(ctx, msg.SenderID)
	}
	return h.buildMessageResponse(msg, sender)
}

func (h *ChatHandler) buildMessageResponse(msg *service.Message, sender *dbmysql.User) messageResponse {
	resp := messageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt.UTC(),
		EditedAt:       msg.EditedAt,
		ReplyToID:      msg.ReplyToID,
	}
	if sender != nil {
		resp.SenderName = sender.DisplayName
		if resp.SenderName == "" {
			resp.SenderName = sender.Username
		}
		resp.SenderAvatar = sender.AvatarFileID
	}
	return resp
}

func toConversationResponse(conv *service.Conversation) conversationResponse {
	return conversationResponse{
		ID:            conv.ID,
		Name:          conv.Name,
		Type:          int(conv.Type),
		LastMessageID: conv.LastMessageID,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt.UTC(),
		UpdatedAt:     conv.UpdatedAt.UTC(),
	}
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAppError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeError(w, status, string(common.CodeOf(err)), err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
