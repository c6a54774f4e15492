package user

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"securechat/internal/common"
	"securechat/internal/dbmongo"
	"securechat/internal/dbmysql"
)

// AvatarReader streams stored avatar files; *dbmongo.AvatarStorage satisfies it.
type AvatarReader interface {
	DownloadAvatar(ctx context.Context, fileID string) (io.Reader, *dbmongo.AvatarFile, error)
}

type UserHandler struct {
	service UserService
	avatars AvatarReader
}

func NewUserHandler(service UserService, avatars AvatarReader) *UserHandler {
	return &UserHandler{service: service, avatars: avatars}
}

func (h *UserHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.Register).Methods("POST")
	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/users/{userId}", h.GetProfile).Methods("GET")
	router.HandleFunc("/users/{userId}", h.UpdateProfile).Methods("PATCH")
	router.HandleFunc("/users/{userId}", h.Deactivate).Methods("DELETE")
	router.HandleFunc("/users/{userId}/avatar", h.UploadAvatar).Methods("POST")
	router.HandleFunc("/avatars/{fileId}", h.ServeAvatar).Methods("GET")
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"displayName,omitempty"`
	AvatarFileID string    `json:"avatarFileId,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token,omitempty"`
}

type updateProfileRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "invalid JSON body")
		return
	}

	user, token, err := h.service.Register(r.Context(), req.Username, req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{User: toUserResponse(user), Token: token})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "invalid JSON body")
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: toUserResponse(user), Token: token})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetProfile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := common.UserIDFromContext(r.Context())
	targetID := mux.Vars(r)["userId"]
	if !ok || callerID != targetID {
		writeError(w, http.StatusForbidden, string(common.CodeNotAuthorized), "can only update your own profile")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "invalid JSON body")
		return
	}

	if err := h.service.UpdateProfile(r.Context(), targetID, req.Email, req.DisplayName); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := common.UserIDFromContext(r.Context())
	targetID := mux.Vars(r)["userId"]
	if !ok || callerID != targetID {
		writeError(w, http.StatusForbidden, string(common.CodeNotAuthorized), "can only deactivate your own account")
		return
	}

	if err := h.service.Deactivate(r.Context(), targetID); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	callerID, ok := common.UserIDFromContext(r.Context())
	targetID := mux.Vars(r)["userId"]
	if !ok || callerID != targetID {
		writeError(w, http.StatusForbidden, string(common.CodeNotAuthorized), "can only set your own avatar")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, string(common.CodeInvalidArgument), "multipart field 'avatar' is required")
		return
	}
	defer file.Close()

	avatar, err := h.service.SetAvatar(r.Context(), targetID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, avatar)
}

func (h *UserHandler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	reader, avatar, err := h.avatars.DownloadAvatar(r.Context(), mux.Vars(r)["fileId"])
	if err != nil {
		writeError(w, http.StatusNotFound, string(common.CodeNotFound), "avatar not found")
		return
	}

	w.Header().Set("Content-Type", avatar.MimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", avatar.Size))
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("error streaming avatar %s: %v", avatar.ID, err)
	}
}

func toUserResponse(user *dbmysql.User) userResponse {
	return userResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		AvatarFileID: user.AvatarFileID,
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt.UTC(),
	}
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
