package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"codetube/internal/auth"
	"codetube/internal/errors"
	"codetube/internal/model"
	"codetube/internal/storage"
)

// fakeUserRepo is an in-memory UserRepository so stateful sequences (token
// rotation, reset consumption) can be exercised end to end.
type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	for _, user := range r.users {
		if user.Username == identifier || user.Email == identifier {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	for _, user := range r.users {
		if user.Username == username || user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error) {
	for _, user := range r.users {
		if user.ResetTokenHash != "" && user.ResetTokenHash == hash {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) UpdateByID(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for column, value := range fields {
		switch column {
		case "refresh_token":
			user.RefreshToken = value.(string)
		case "password_hash":
			user.PasswordHash = value.(string)
		case "reset_token_hash":
			user.ResetTokenHash = value.(string)
		case "reset_token_expires_at":
			if value == nil {
				user.ResetTokenExpiresAt = nil
			} else {
				at := value.(time.Time)
				user.ResetTokenExpiresAt = &at
			}
		default:
			return nil, fmt.Errorf("unexpected column %q", column)
		}
	}
	copied := *user
	return &copied, nil
}

type fakeStorage struct {
	uploads int
	err     error
}

func (s *fakeStorage) Upload(ctx context.Context, localPath, folder string) (*storage.UploadResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.uploads++
	key := fmt.Sprintf("%s/upload-%d", folder, s.uploads)
	return &storage.UploadResult{Key: key, URL: "https://cdn.test/" + key}, nil
}

func (s *fakeStorage) Delete(ctx context.Context, key string) error {
	return nil
}

type fakeMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (m *fakeMailer) Send(to, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.to, m.subject, m.body = to, subject, htmlBody
	return nil
}

type fakeUserCache struct {
	invalidations int
}

func (c *fakeUserCache) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return nil, nil
}

func (c *fakeUserCache) StoreUser(ctx context.Context, user *model.User) error {
	return nil
}

func (c *fakeUserCache) InvalidateUser(ctx context.Context, id uuid.UUID) error {
	c.invalidations++
	return nil
}

type testDeps struct {
	repo       *fakeUserRepo
	storage    *fakeStorage
	mailer     *fakeMailer
	cache      *fakeUserCache
	jwtService *auth.JWTService
}

func newTestService(t *testing.T) (SessionService, *testDeps) {
	t.Helper()
	deps := &testDeps{
		repo:       newFakeUserRepo(),
		storage:    &fakeStorage{},
		mailer:     &fakeMailer{},
		cache:      &fakeUserCache{},
		jwtService: auth.NewJWTService("access-secret", "refresh-secret", time.Minute, time.Hour),
	}
	svc := NewSessionService(
		deps.repo,
		auth.NewBcryptHasher(),
		deps.jwtService,
		deps.storage,
		deps.mailer,
		deps.cache,
		"https://codetube.test",
	)
	return svc, deps
}

func registerAlice(t *testing.T, svc SessionService) (*model.User, *TokenPair) {
	t.Helper()
	user, pair, err := svc.Register(context.Background(), RegisterInput{
		Username:   "alice",
		Email:      "alice@x.com",
		FullName:   "Alice",
		Password:   "P@ssw0rd1",
		AvatarPath: "/tmp/avatar.png",
	})
	assert.NoError(t, err)
	return user, pair
}

func TestSessionService_Register(t *testing.T) {
	tests := []struct {
		name         string
		input        RegisterInput
		seed         bool
		expectedKind errors.Kind
		wantErr      bool
	}{
		{
			name: "successful registration",
			input: RegisterInput{
				Username:   "Alice",
				Email:      "Alice@X.com",
				FullName:   "Alice",
				Password:   "P@ssw0rd1",
				AvatarPath: "/tmp/avatar.png",
				CoverPath:  "/tmp/cover.png",
			},
		},
		{
			name: "missing avatar",
			input: RegisterInput{
				Username: "bob",
				Email:    "bob@x.com",
				FullName: "Bob",
				Password: "P@ssw0rd1",
			},
			wantErr:      true,
			expectedKind: errors.KindValidation,
		},
		{
			name: "username taken",
			seed: true,
			input: RegisterInput{
				Username:   "alice",
				Email:      "other@x.com",
				FullName:   "Other",
				Password:   "P@ssw0rd1",
				AvatarPath: "/tmp/avatar.png",
			},
			wantErr:      true,
			expectedKind: errors.KindConflict,
		},
		{
			name: "email taken",
			seed: true,
			input: RegisterInput{
				Username:   "other",
				Email:      "alice@x.com",
				FullName:   "Other",
				Password:   "P@ssw0rd1",
				AvatarPath: "/tmp/avatar.png",
			},
			wantErr:      true,
			expectedKind: errors.KindConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newTestService(t)
			if tt.seed {
				registerAlice(t, svc)
			}

			user, pair, err := svc.Register(context.Background(), tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedKind, errors.KindOf(err))
				assert.Nil(t, user)
				assert.Nil(t, pair)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, "alice", user.Username)
			assert.Equal(t, "alice@x.com", user.Email)
			assert.NotEqual(t, "P@ssw0rd1", user.PasswordHash)
			assert.True(t, auth.NewBcryptHasher().Verify("P@ssw0rd1", user.PasswordHash))
			assert.NotEmpty(t, user.AvatarURL)
			assert.NotEmpty(t, user.CoverURL)
			assert.Equal(t, 2, deps.storage.uploads)
			assert.NotEmpty(t, pair.AccessToken)
			assert.Equal(t, pair.RefreshToken, user.RefreshToken)
		})
	}
}

func TestSessionService_Login(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    bool
	}{
		{name: "by email", identifier: "alice@x.com", password: "P@ssw0rd1"},
		{name: "by username", identifier: "alice", password: "P@ssw0rd1"},
		{name: "email case-insensitive", identifier: "Alice@X.com", password: "P@ssw0rd1"},
		{name: "unknown identifier", identifier: "nobody@x.com", password: "P@ssw0rd1", wantErr: true},
		{name: "wrong password", identifier: "alice@x.com", password: "wrong", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			registerAlice(t, svc)

			user, pair, err := svc.Login(context.Background(), tt.identifier, tt.password)
			if tt.wantErr {
				// unknown user and wrong password must be indistinguishable
				assert.Error(t, err)
				assert.Equal(t, errors.KindInvalidCredentials, errors.KindOf(err))
				assert.Equal(t, "Invalid credentials. Please try again.", errors.MessageOf(err))
				assert.Nil(t, user)
				assert.Nil(t, pair)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, "alice", user.Username)
			assert.NotEmpty(t, pair.AccessToken)
			assert.Equal(t, pair.RefreshToken, user.RefreshToken)
		})
	}
}

func TestSessionService_SingleSession(t *testing.T) {
	svc, _ := newTestService(t)
	registerAlice(t, svc)
	ctx := context.Background()

	_, first, err := svc.Login(ctx, "alice@x.com", "P@ssw0rd1")
	assert.NoError(t, err)
	time.Sleep(1100 * time.Millisecond) // distinct iat so the second token differs
	_, second, err := svc.Login(ctx, "alice@x.com", "P@ssw0rd1")
	assert.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// the earlier session was superseded
	_, err = svc.RefreshAccessToken(ctx, first.RefreshToken)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	_, err = svc.RefreshAccessToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestSessionService_RefreshRotation(t *testing.T) {
	svc, _ := newTestService(t)
	_, initial := registerAlice(t, svc)
	ctx := context.Background()

	time.Sleep(1100 * time.Millisecond)
	rotated, err := svc.RefreshAccessToken(ctx, initial.RefreshToken)
	assert.NoError(t, err)
	assert.NotEqual(t, initial.RefreshToken, rotated.RefreshToken)

	// the superseded token is a replay now
	_, err = svc.RefreshAccessToken(ctx, initial.RefreshToken)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	_, err = svc.RefreshAccessToken(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestSessionService_RefreshFailures(t *testing.T) {
	svc, deps := newTestService(t)
	registerAlice(t, svc)
	ctx := context.Background()

	orphanToken, err := deps.jwtService.GenerateRefreshToken(uuid.New())
	assert.NoError(t, err)

	tests := []struct {
		name         string
		token        string
		expectedKind errors.Kind
	}{
		{name: "missing token", token: "", expectedKind: errors.KindUnauthorized},
		{name: "garbage token", token: "not.a.jwt", expectedKind: errors.KindUnauthorized},
		{name: "user no longer exists", token: orphanToken, expectedKind: errors.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RefreshAccessToken(ctx, tt.token)
			assert.Error(t, err)
			assert.Equal(t, tt.expectedKind, errors.KindOf(err))
		})
	}
}

func TestSessionService_Logout(t *testing.T) {
	svc, deps := newTestService(t)
	user, pair := registerAlice(t, svc)
	ctx := context.Background()

	assert.NoError(t, svc.Logout(ctx, user.ID))

	stored, err := deps.repo.FindByID(ctx, user.ID)
	assert.NoError(t, err)
	assert.Empty(t, stored.RefreshToken)

	// refresh path is revoked
	_, err = svc.RefreshAccessToken(ctx, pair.RefreshToken)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))
}

func TestSessionService_Logout_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Logout(context.Background(), uuid.New())
	assert.Equal(t, errors.KindUnauthorized, errors.KindOf(err))
}

func resetTokenFromEmail(t *testing.T, body string) string {
	t.Helper()
	_, after, found := strings.Cut(body, "token=")
	assert.True(t, found, "reset email must contain a token link")
	raw, _, _ := strings.Cut(after, `"`)
	return raw
}

func TestSessionService_ForgetPassword(t *testing.T) {
	svc, deps := newTestService(t)
	user, _ := registerAlice(t, svc)
	ctx := context.Background()

	err := svc.ForgetPassword(ctx, "alice@x.com")
	assert.NoError(t, err)
	assert.Equal(t, "alice@x.com", deps.mailer.to)

	raw := resetTokenFromEmail(t, deps.mailer.body)
	assert.NotEmpty(t, raw)

	stored, err := deps.repo.FindByID(ctx, user.ID)
	assert.NoError(t, err)
	// only the hash is persisted, together with the expiry
	assert.Equal(t, auth.HashResetToken(raw), stored.ResetTokenHash)
	assert.NotEqual(t, raw, stored.ResetTokenHash)
	assert.NotNil(t, stored.ResetTokenExpiresAt)
	assert.WithinDuration(t, time.Now().Add(auth.ResetTokenTTL), *stored.ResetTokenExpiresAt, 5*time.Second)
}

func TestSessionService_ForgetPassword_UnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.ForgetPassword(context.Background(), "nobody@x.com")
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestSessionService_ForgetPassword_MailFailure(t *testing.T) {
	svc, deps := newTestService(t)
	registerAlice(t, svc)
	deps.mailer.err = stderrors.New("smtp: connection refused")

	err := svc.ForgetPassword(context.Background(), "alice@x.com")
	assert.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))
}

func TestSessionService_ResetPassword(t *testing.T) {
	svc, deps := newTestService(t)
	user, pair := registerAlice(t, svc)
	ctx := context.Background()

	assert.NoError(t, svc.ForgetPassword(ctx, "alice@x.com"))
	raw := resetTokenFromEmail(t, deps.mailer.body)

	assert.NoError(t, svc.ResetPassword(ctx, raw, "N3w-P@ssw0rd"))

	stored, err := deps.repo.FindByID(ctx, user.ID)
	assert.NoError(t, err)
	assert.Empty(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiresAt)
	// existing sessions are invalidated by the reset
	assert.Empty(t, stored.RefreshToken)
	_, err = svc.RefreshAccessToken(ctx, pair.RefreshToken)
	assert.Equal(t, errors.KindForbidden, errors.KindOf(err))

	// old password out, new password in
	_, _, err = svc.Login(ctx, "alice@x.com", "P@ssw0rd1")
	assert.Equal(t, errors.KindInvalidCredentials, errors.KindOf(err))
	_, _, err = svc.Login(ctx, "alice@x.com", "N3w-P@ssw0rd")
	assert.NoError(t, err)

	// the capability token is single use
	err = svc.ResetPassword(ctx, raw, "another-password")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestSessionService_ResetPassword_Invalid(t *testing.T) {
	svc, _ := newTestService(t)
	registerAlice(t, svc)

	err := svc.ResetPassword(context.Background(), "completely-wrong-token", "N3w-P@ssw0rd")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestSessionService_ResetPassword_Expired(t *testing.T) {
	svc, deps := newTestService(t)
	user, _ := registerAlice(t, svc)
	ctx := context.Background()

	assert.NoError(t, svc.ForgetPassword(ctx, "alice@x.com"))
	raw := resetTokenFromEmail(t, deps.mailer.body)

	// push the window into the past; the hash still matches but the token is stale
	_, err := deps.repo.UpdateByID(ctx, user.ID, map[string]interface{}{
		"reset_token_expires_at": time.Now().Add(-time.Minute),
	})
	assert.NoError(t, err)

	err = svc.ResetPassword(ctx, raw, "N3w-P@ssw0rd")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}
