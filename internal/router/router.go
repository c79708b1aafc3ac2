package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"codetube/internal/auth"
	"codetube/internal/handler"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	guard *auth.Guard,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.HTTPErrorHandler = handler.HTTPErrorHandler

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh-token", authHandler.Refresh)
	api.POST("/auth/forget-password", authHandler.ForgetPassword)
	api.POST("/auth/reset-password", authHandler.ResetPassword)

	// Secured routes (require a valid access token)
	secured := api.Group("", guard.Middlewares()...)
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/users/me", userHandler.Me)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
