//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/addon-herd/internal/auth"
	"github.com/hugh/addon-herd/internal/database"
	"github.com/hugh/addon-herd/pkg/config"
	"github.com/hugh/addon-herd/pkg/crypto"
	"github.com/hugh/addon-herd/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if cfg.Encryption.Identity == "" {
		log.Fatalf("ENCRYPTION_IDENTITY must be set to seed accounts")
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Identity)
	if err != nil {
		log.Fatalf("failed to create encryptor: %v", err)
	}
	keyring := crypto.NewKeyring(encryptor, 5*time.Minute)

	// Create admin account
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, keyring)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "admin123!"
	}
	if name == "" {
		name = "Admin"
	}

	resp, err := authService.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
	})

	if err != nil {
		if err == auth.ErrAccountExists {
			fmt.Printf("Admin account already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin account: %v", err)
	}

	fmt.Printf("Admin account created successfully!\n")
	fmt.Printf("Email: %s\n", resp.Account.Email)
	fmt.Printf("Token: %s\n", resp.Token)
}
