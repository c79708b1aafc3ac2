package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codetube/internal/auth"
)

// UserHandler exposes the authenticated user's own profile.
type UserHandler struct{}

// NewUserHandler creates a new user handler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me godoc
// @Summary Get the current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} APIResponse
// @Failure 401 {object} APIResponse
// @Router /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return respond(c, http.StatusUnauthorized, "Unauthorized", nil)
	}
	return respond(c, http.StatusOK, "User profile fetched successfully", user)
}
