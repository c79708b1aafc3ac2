package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"codetube/internal/auth"
	"codetube/internal/service"
)

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	sessions service.SessionService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions service.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// RegisterRequest represents the multipart registration fields.
type RegisterRequest struct {
	Username string `form:"username" validate:"required,min=3"`
	Email    string `form:"email" validate:"required,email"`
	FullName string `form:"fullName" validate:"required"`
	Password string `form:"password" validate:"required,min=8"`
}

// LoginRequest represents a login request; identifier is username or email.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token for non-cookie clients.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgetPasswordRequest starts the reset flow.
type ForgetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest consumes a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept mpfd
// @Produce json
// @Param username formData string true "Username"
// @Param email formData string true "Email"
// @Param fullName formData string true "Full name"
// @Param password formData string true "Password"
// @Param avatar formData file true "Avatar image"
// @Param coverImage formData file false "Cover image"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := c.Validate(&req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error(), nil)
	}

	// Stage multipart files locally; they are removed on every path once the
	// service returns, the cloud copies being authoritative by then.
	avatarPath, err := stageUpload(c, "avatar")
	if err != nil {
		return respond(c, http.StatusBadRequest, "Please upload an avatar image.", nil)
	}
	defer removeStaged(avatarPath)

	coverPath, err := stageUpload(c, "coverImage")
	if err != nil {
		coverPath = ""
	}
	defer removeStaged(coverPath)

	user, pair, err := h.sessions.Register(c.Request().Context(), service.RegisterInput{
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Password:   req.Password,
		AvatarPath: avatarPath,
		CoverPath:  coverPath,
	})
	if err != nil {
		return respondError(c, err)
	}

	setAuthCookies(c, pair)
	message := fmt.Sprintf("Welcome %s, Your account has been created successfully", user.FullName)
	return respond(c, http.StatusCreated, message, user)
}

// Login godoc
// @Summary Login with username or email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := c.Validate(&req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error(), nil)
	}

	user, pair, err := h.sessions.Login(c.Request().Context(), req.Identifier, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	setAuthCookies(c, pair)
	return respond(c, http.StatusOK, fmt.Sprintf("Welcome %s", user.FullName), user)
}

// Logout godoc
// @Summary Logout the current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return respond(c, http.StatusUnauthorized, "User not found or not authenticated", nil)
	}

	if err := h.sessions.Logout(c.Request().Context(), user.ID); err != nil {
		return respondError(c, err)
	}

	clearAuthCookies(c)
	return respond(c, http.StatusOK, "User logged out successfully", nil)
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh token (cookie is used when present)"
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Failure 403 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /auth/refresh-token [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	incoming := ""
	if cookie, err := c.Cookie(refreshCookieName); err == nil {
		incoming = cookie.Value
	}
	if incoming == "" {
		var req RefreshRequest
		if err := c.Bind(&req); err == nil {
			incoming = req.RefreshToken
		}
	}

	pair, err := h.sessions.RefreshAccessToken(c.Request().Context(), incoming)
	if err != nil {
		return respondError(c, err)
	}

	// The pair is also returned in the body for non-cookie clients.
	setAuthCookies(c, pair)
	return respond(c, http.StatusOK, "New access token generated successfully.", pair)
}

// ForgetPassword godoc
// @Summary Email a password-reset link
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ForgetPasswordRequest true "Account email"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /auth/forget-password [post]
func (h *AuthHandler) ForgetPassword(c echo.Context) error {
	var req ForgetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := c.Validate(&req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error(), nil)
	}

	if err := h.sessions.ForgetPassword(c.Request().Context(), req.Email); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Password reset email sent", nil)
}

// ResetPassword godoc
// @Summary Reset the password with a mailed token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := c.Validate(&req); err != nil {
		return respond(c, http.StatusBadRequest, err.Error(), nil)
	}

	if err := h.sessions.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return respondError(c, err)
	}
	return respond(c, http.StatusOK, "Password has been reset successfully", nil)
}

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

func setAuthCookies(c echo.Context, pair *service.TokenPair) {
	c.SetCookie(authCookie(accessCookieName, pair.AccessToken))
	c.SetCookie(authCookie(refreshCookieName, pair.RefreshToken))
}

func clearAuthCookies(c echo.Context) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		cookie := authCookie(name, "")
		cookie.MaxAge = -1
		c.SetCookie(cookie)
	}
}

func authCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

// stageUpload copies a multipart file into the OS temp dir and returns its
// path. Returns an error when the field is absent.
func stageUpload(c echo.Context, field string) (string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return "", err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	return copyToTemp(src, filepath.Ext(fileHeader.Filename))
}

func copyToTemp(src multipart.File, ext string) (string, error) {
	dst, err := os.CreateTemp("", "codetube-upload-*"+ext)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func removeStaged(path string) {
	if path == "" {
		return
	}
	os.Remove(path)
}
