package main

import (
	"context"
	"log"
	"net/http"

	_ "codetube/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"codetube/internal/auth"
	"codetube/internal/cache"
	"codetube/internal/config"
	"codetube/internal/db"
	"codetube/internal/handler"
	"codetube/internal/mail"
	"codetube/internal/model"
	"codetube/internal/repository"
	"codetube/internal/router"
	"codetube/internal/service"
	"codetube/internal/storage"
)

// @title CodeTube API
// @version 1.0
// @description Video-sharing platform backend: authentication and session lifecycle.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token. Cookies set at login work as well.
func main() {
	cfg := config.Load()

	e := echo.New()
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	objectStorage, err := storage.NewMinioStorage(storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("object storage init: %v", err)
	}
	if err := objectStorage.EnsureBucket(context.Background()); err != nil {
		log.Printf("Warning: could not ensure media bucket: %v", err)
	}

	mailer := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)

	// Initialize repositories and auth components
	userRepo := repository.NewUserRepository(gormDB)
	jwtService := auth.NewJWTService(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)
	hasher := auth.NewBcryptHasher()
	userCache := auth.NewUserCache(cacheClient)
	guard := auth.NewGuard(jwtService, userRepo, userCache)

	// Initialize services
	sessionService := service.NewSessionService(
		userRepo,
		hasher,
		jwtService,
		objectStorage,
		mailer,
		userCache,
		cfg.PublicBaseURL,
	)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(sessionService)
	userHandler := handler.NewUserHandler()

	// Register routes
	router.Register(e, guard, authHandler, userHandler)

	if cfg.SwaggerHost != "" {
		log.Printf("Swagger documentation available at: %s/swagger/index.html", cfg.SwaggerHost)
	}

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
