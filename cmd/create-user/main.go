package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/stemsi/hoa-backend/internal/config"
	"github.com/stemsi/hoa-backend/internal/database"
	"github.com/stemsi/hoa-backend/internal/logger"
	"github.com/stemsi/hoa-backend/internal/model"
	"github.com/stemsi/hoa-backend/internal/repository"
	"github.com/stemsi/hoa-backend/internal/service"
)

func main() {
	role := flag.String("role", string(model.RoleAdmin), "Account role: admin or student")
	flag.Parse()

	if *role != string(model.RoleAdmin) && *role != string(model.RoleStudent) {
		fmt.Println("Error: -role must be admin or student")
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	// Hashing needs no Redis.
	authService := service.NewAuthService(cfg, nil, userRepo)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("=== Create New %s ===\n", strings.ToUpper((*role)[:1])+(*role)[1:])

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		fmt.Println("Error: a valid email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := authService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	user := &model.User{
		Email:        email,
		Name:         name,
		Role:         model.Role(*role),
		PasswordHash: hash,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %d\n", user.Role, user.Name, user.Email, user.ID)
}
