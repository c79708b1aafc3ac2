package main

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"codetube/internal/auth"
	"codetube/internal/config"
	"codetube/internal/db"
	"codetube/internal/model"
	"codetube/internal/repository"
)

// Seeds a demo user for local development.
func main() {
	cfg := config.Load()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	users := repository.NewUserRepository(gormDB)
	hasher := auth.NewBcryptHasher()
	ctx := context.Background()

	const (
		username = "demo"
		email    = "demo@codetube.local"
		password = "demo-password-1"
	)

	if _, err := users.FindByUsernameOrEmail(ctx, username, email); err == nil {
		log.Println("demo user already exists, nothing to do")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("check demo user: %v", err)
	}

	passwordHash, err := hasher.Hash(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     "Demo User",
		AvatarKey:    "avatars/demo.png",
		AvatarURL:    "https://placehold.co/256x256.png",
		PasswordHash: passwordHash,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("create demo user: %v", err)
	}

	log.Printf("seeded demo user %s (password: %s)", email, password)
}
