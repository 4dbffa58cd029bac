package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/roster"
	"classtrack/internal/store"
)

// Bootstrap creates the first admin account. Safe to re-run: an existing
// username is reported, not overwritten.
func main() {
	username := flag.String("username", "admin", "admin username")
	password := flag.String("password", "", "admin password (required)")
	flag.Parse()

	if *password == "" {
		log.Fatal("-password is required")
	}

	cfg := config.Load()
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	repo := roster.NewRepository(db.Client)
	acc, err := repo.CreateAccount(context.Background(), roster.Account{
		Username:     *username,
		PasswordHash: hash,
		Role:         roster.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			log.Printf("admin %q already exists", *username)
			return
		}
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("admin %q created (id %d)", acc.Username, acc.ID)
}
