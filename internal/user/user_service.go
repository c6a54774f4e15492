package user

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"securechat/internal/common"
	"securechat/internal/config"
	"securechat/internal/dbmongo"
	"securechat/internal/dbmysql"
)

// AvatarStore abstracts the GridFS-backed avatar bucket.
type AvatarStore interface {
	UploadAvatar(ctx context.Context, filename, mimeType, userID string, content io.Reader) (*dbmongo.AvatarFile, error)
	DeleteAvatar(ctx context.Context, fileID string) error
}

type UserService interface {
	Register(ctx context.Context, username, email, displayName, password string) (*dbmysql.User, string, error)
	Login(ctx context.Context, username, password string) (*dbmysql.User, string, error)
	GetProfile(ctx context.Context, userID string) (*dbmysql.User, error)
	UpdateProfile(ctx context.Context, userID, email, displayName string) error
	Deactivate(ctx context.Context, userID string) error
	SetAvatar(ctx context.Context, userID, filename, mimeType string, content io.Reader) (*dbmongo.AvatarFile, error)
}

type userService struct {
	repo    UserRepository
	avatars AvatarStore
	cfg     *config.Config
}

func NewUserService(repo UserRepository, avatars AvatarStore, cfg *config.Config) UserService {
	return &userService{repo: repo, avatars: avatars, cfg: cfg}
}

// Register creates an account. The returned token is empty unless JWT
// issuance is enabled in config.
func (s *userService) Register(ctx context.Context, username, email, displayName, password string) (*dbmysql.User, string, error) {
	if err := common.ValidateUsername(username); err != nil {
		return nil, "", err
	}
	if err := common.ValidateEmail(email); err != nil {
		return nil, "", err
	}
	if err := common.ValidatePassword(password); err != nil {
		return nil, "", err
	}

	exists, err := s.repo.CheckUsernameExists(ctx, username)
	if err != nil {
		return nil, "", common.Transient("username lookup failed", err)
	}
	if exists {
		return nil, "", common.ErrUsernameTaken
	}

	hashed, err := common.HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	user := &dbmysql.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hashed,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, "", common.Transient("failed to create user", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*dbmysql.User, string, error) {
	if username == "" || password == "" {
		return nil, "", common.InvalidArg("username and password are required")
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", common.NotAuthorized("invalid credentials")
		}
		return nil, "", common.Transient("user lookup failed", err)
	}

	if err := common.CheckPassword(password, user.PasswordHash); err != nil {
		return nil, "", common.NotAuthorized("invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*dbmysql.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrUserNotFound
	}
	return user, err
}

func (s *userService) UpdateProfile(ctx context.Context, userID, email, displayName string) error {
	if err := common.ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrUserNotFound
		}
		return common.Transient("user lookup failed", err)
	}

	if email != "" {
		user.Email = email
	}
	if displayName != "" {
		user.DisplayName = displayName
	}
	user.UpdatedAt = time.Now().UTC()

	return s.repo.UpdateUser(ctx, user)
}

func (s *userService) Deactivate(ctx context.Context, userID string) error {
	err := s.repo.DeactivateUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrUserNotFound
	}
	return err
}

// SetAvatar uploads the image and points the profile at it, dropping the
// previous file when present.
func (s *userService) SetAvatar(ctx context.Context, userID, filename, mimeType string, content io.Reader) (*dbmongo.AvatarFile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, common.Transient("user lookup failed", err)
	}

	avatar, err := s.avatars.UploadAvatar(ctx, filename, mimeType, userID, content)
	if err != nil {
		return nil, common.InvalidArg(err.Error())
	}

	previous := user.AvatarFileID
	user.AvatarFileID = avatar.ID
	user.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, common.Transient("failed to update avatar reference", err)
	}

	if previous != "" {
		// Old file is unreferenced now; removal failure only leaks storage.
		_ = s.avatars.DeleteAvatar(ctx, previous)
	}

	return avatar, nil
}

func (s *userService) issueToken(user *dbmysql.User) (string, error) {
	if !s.cfg.Auth.JWTEnabled {
		return "", nil
	}
	return common.GenerateToken(s.cfg.Auth.JWTSecret, user.ID, user.Username)
}
