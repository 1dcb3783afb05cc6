package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-attempts/internal/config"
	"github.com/stemsi/exstem-attempts/internal/service"
)

func main() {
	var (
		userID    int
		tokenType string
	)
	flag.IntVar(&userID, "user", 0, "User ID placed in the token")
	flag.StringVar(&tokenType, "type", string(service.TokenTypeStudent), "Token type: student or admin")
	flag.Parse()

	if userID <= 0 {
		fmt.Println("Error: -user must be a positive ID")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	token, err := authService.GenerateToken(userID, service.TokenType(tokenType))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Token for %s %d (valid %s):\n", tokenType, userID, cfg.JWTExpiry)
	fmt.Println(token)
}
