package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"codetube/internal/model"
)

// stubUserRepo serves a fixed set of users by ID; the guard only needs FindByID.
type stubUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (r *stubUserRepo) Create(ctx context.Context, user *model.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) UpdateByID(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.User, error) {
	return r.FindByID(ctx, id)
}

func newGuardTestServer(t *testing.T, jwtService *JWTService, repo *stubUserRepo) *echo.Echo {
	t.Helper()
	guard := NewGuard(jwtService, repo, NewUserCache(nil))

	e := echo.New()
	secured := e.Group("", guard.Middlewares()...)
	secured.GET("/me", func(c echo.Context) error {
		user, ok := CurrentUser(c)
		if !ok {
			return echo.NewHTTPError(http.StatusInternalServerError, "no user in context")
		}
		return c.String(http.StatusOK, user.Username)
	})
	return e
}

func TestGuard_BearerHeader(t *testing.T) {
	jwtService := NewJWTService("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := testUser()
	repo := &stubUserRepo{users: map[uuid.UUID]*model.User{user.ID: user}}
	e := newGuardTestServer(t, jwtService, repo)

	token, err := jwtService.GenerateAccessToken(user)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestGuard_Cookie(t *testing.T) {
	jwtService := NewJWTService("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := testUser()
	repo := &stubUserRepo{users: map[uuid.UUID]*model.User{user.ID: user}}
	e := newGuardTestServer(t, jwtService, repo)

	token, err := jwtService.GenerateAccessToken(user)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_Failures(t *testing.T) {
	jwtService := NewJWTService("access-secret", "refresh-secret", time.Minute, time.Hour)
	forged := NewJWTService("wrong-secret", "refresh-secret", time.Minute, time.Hour)
	expired := NewJWTService("access-secret", "refresh-secret", -time.Minute, time.Hour)

	user := testUser()
	repo := &stubUserRepo{users: map[uuid.UUID]*model.User{user.ID: user}}
	e := newGuardTestServer(t, jwtService, repo)

	forgedToken, _ := forged.GenerateAccessToken(user)
	expiredToken, _ := expired.GenerateAccessToken(user)
	deletedUserToken, _ := jwtService.GenerateAccessToken(&model.User{ID: uuid.New(), Username: "ghost"})

	tests := []struct {
		name  string
		setup func(req *http.Request)
	}{
		{name: "missing token", setup: func(req *http.Request) {}},
		{name: "bad signature", setup: func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+forgedToken)
		}},
		{name: "expired token", setup: func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+expiredToken)
		}},
		{name: "user no longer exists", setup: func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+deletedUserToken)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

// The guard never consults the stored refresh token, so an access token keeps
// working after the refresh path is revoked until the token itself expires.
func TestGuard_StatelessAfterLogout(t *testing.T) {
	jwtService := NewJWTService("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := testUser()
	user.RefreshToken = ""
	repo := &stubUserRepo{users: map[uuid.UUID]*model.User{user.ID: user}}
	e := newGuardTestServer(t, jwtService, repo)

	token, err := jwtService.GenerateAccessToken(user)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
