package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"codetube/internal/auth"
	"codetube/internal/errors"
	"codetube/internal/mail"
	"codetube/internal/model"
	"codetube/internal/repository"
	"codetube/internal/storage"
)

const (
	avatarFolder = "avatars"
	coverFolder  = "covers"
)

// TokenPair is an access/refresh token pair issued on authentication.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput carries registration fields plus locally staged upload paths.
// The caller owns the staged files and removes them when the call returns.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	// AvatarPath is required; CoverPath may be empty.
	AvatarPath string
	CoverPath  string
}

// SessionService orchestrates the authentication lifecycle: registration,
// login, logout, refresh rotation, and password reset.
type SessionService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, *TokenPair, error)
	Login(ctx context.Context, identifier, password string) (*model.User, *TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	RefreshAccessToken(ctx context.Context, incoming string) (*TokenPair, error)
	ForgetPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

type sessionService struct {
	users      repository.UserRepository
	hasher     auth.PasswordHasher
	jwtService *auth.JWTService
	storage    storage.ObjectStorage
	mailer     mail.Mailer
	userCache  auth.UserCacheInterface
	// resetBaseURL is the public origin used to build reset links.
	resetBaseURL string
}

// NewSessionService creates a new session service with explicit dependencies.
func NewSessionService(
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	jwtService *auth.JWTService,
	objectStorage storage.ObjectStorage,
	mailer mail.Mailer,
	userCache auth.UserCacheInterface,
	resetBaseURL string,
) SessionService {
	return &sessionService{
		users:        users,
		hasher:       hasher,
		jwtService:   jwtService,
		storage:      objectStorage,
		mailer:       mailer,
		userCache:    userCache,
		resetBaseURL: resetBaseURL,
	}
}

// Register creates a user with a hashed password and uploaded media, then
// opens their first session. Cloud uploads are not rolled back when a later
// step fails; the staged local files are the caller's to clean up.
func (s *sessionService) Register(ctx context.Context, in RegisterInput) (*model.User, *TokenPair, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if in.AvatarPath == "" {
		return nil, nil, errors.E(errors.KindValidation, "Please upload an avatar image.")
	}

	existing, err := s.users.FindByUsernameOrEmail(ctx, username, email)
	if err == nil && existing != nil {
		return nil, nil, errors.E(errors.KindConflict, "User already exists with the provided details")
	}
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, errors.Wrap(err, "failed to check user existence")
	}

	avatar, err := s.storage.Upload(ctx, in.AvatarPath, avatarFolder)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to upload avatar")
	}

	var cover *storage.UploadResult
	if in.CoverPath != "" {
		cover, err = s.storage.Upload(ctx, in.CoverPath, coverFolder)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to upload cover image")
		}
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to hash password")
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		AvatarKey:    avatar.Key,
		AvatarURL:    avatar.URL,
		PasswordHash: passwordHash,
	}
	if cover != nil {
		user.CoverKey = cover.Key
		user.CoverURL = cover.URL
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, errors.Wrap(err, "failed to create user")
	}

	user, pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies credentials by username or email. Unknown identifier and
// wrong password fail identically so callers cannot enumerate accounts.
func (s *sessionService) Login(ctx context.Context, identifier, password string) (*model.User, *TokenPair, error) {
	user, err := s.users.FindByIdentifier(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.E(errors.KindInvalidCredentials, "Invalid credentials. Please try again.")
		}
		return nil, nil, errors.Wrap(err, "failed to look up user")
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil, errors.E(errors.KindInvalidCredentials, "Invalid credentials. Please try again.")
	}

	user, pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout clears the stored refresh token, revoking the refresh path. Already
// issued access tokens stay valid until their own expiry.
func (s *sessionService) Logout(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.users.UpdateByID(ctx, userID, map[string]interface{}{"refresh_token": ""}); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.E(errors.KindUnauthorized, "User not found or not authenticated")
		}
		return errors.Wrap(err, "failed to log out")
	}
	_ = s.userCache.InvalidateUser(ctx, userID)
	return nil
}

// RefreshAccessToken exchanges a valid refresh token for a rotated pair. A
// token that verifies but does not match the stored value is a replay of a
// superseded session and is rejected.
func (s *sessionService) RefreshAccessToken(ctx context.Context, incoming string) (*TokenPair, error) {
	if incoming == "" {
		return nil, errors.E(errors.KindUnauthorized, "Token not found. Please provide a valid refresh token.")
	}

	claims, err := s.jwtService.ValidateRefreshToken(incoming)
	if err != nil {
		return nil, errors.E(errors.KindUnauthorized, "Invalid or expired refresh token. Please login again.")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.E(errors.KindForbidden, "Unauthorized access. User does not exist.")
		}
		return nil, errors.Wrap(err, "failed to look up user")
	}

	if incoming != user.RefreshToken {
		return nil, errors.E(errors.KindForbidden, "Invalid refresh token. Please login again.")
	}

	_, pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// ForgetPassword starts the capability-token reset flow: only the token hash
// is persisted, the raw token goes out by email.
func (s *sessionService) ForgetPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.E(errors.KindNotFound, "No account found with that email address")
		}
		return errors.Wrap(err, "failed to look up user")
	}

	raw, hash, err := auth.GenerateResetToken()
	if err != nil {
		return errors.Wrap(err, "failed to generate reset token")
	}

	expiresAt := time.Now().Add(auth.ResetTokenTTL)
	if _, err := s.users.UpdateByID(ctx, user.ID, map[string]interface{}{
		"reset_token_hash":       hash,
		"reset_token_expires_at": expiresAt,
	}); err != nil {
		return errors.Wrap(err, "failed to store reset token")
	}
	_ = s.userCache.InvalidateUser(ctx, user.ID)

	link := fmt.Sprintf("%s/reset-password?token=%s", s.resetBaseURL, raw)
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>Click <a href=%q>here</a> to reset your password. The link expires in 15 minutes.</p>",
		user.FullName, link,
	)
	if err := s.mailer.Send(user.Email, "Reset your CodeTube password", body); err != nil {
		return errors.Wrap(err, "failed to send reset email")
	}
	return nil
}

// ResetPassword consumes a reset token: replaces the password, clears the
// reset fields, and clears the stored refresh token so existing sessions are
// invalidated.
func (s *sessionService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	user, err := s.users.FindByResetTokenHash(ctx, auth.HashResetToken(rawToken))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return errors.E(errors.KindValidation, "Invalid or expired reset token")
		}
		return errors.Wrap(err, "failed to look up reset token")
	}

	if user.ResetTokenExpiresAt == nil || time.Now().After(*user.ResetTokenExpiresAt) {
		return errors.E(errors.KindValidation, "Invalid or expired reset token")
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	if _, err := s.users.UpdateByID(ctx, user.ID, map[string]interface{}{
		"password_hash":          passwordHash,
		"reset_token_hash":       "",
		"reset_token_expires_at": nil,
		"refresh_token":          "",
	}); err != nil {
		return errors.Wrap(err, "failed to reset password")
	}
	_ = s.userCache.InvalidateUser(ctx, user.ID)
	return nil
}

// openSession issues a fresh token pair and persists the refresh token,
// superseding whatever session existed before. Per-user this is a plain
// read-modify-write; racing logins resolve to last writer wins, which still
// upholds the single-active-session invariant.
func (s *sessionService) openSession(ctx context.Context, user *model.User) (*model.User, *TokenPair, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to generate access token")
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to generate refresh token")
	}

	updated, err := s.users.UpdateByID(ctx, user.ID, map[string]interface{}{"refresh_token": refreshToken})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to persist refresh token")
	}
	_ = s.userCache.InvalidateUser(ctx, user.ID)

	return updated, &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
