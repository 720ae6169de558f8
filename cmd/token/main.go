// Command token mints a bearer token for local testing against a server
// that shares its JWT_SECRET.
//
//	go run ./cmd/token -user alice
//	go run ./cmd/token -user bob -ttl 15m
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("Token not issued", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	user := fs.String("user", "", "user ID to put in the token")
	ttl := fs.Duration("ttl", 0, "token lifetime (default JWT_TOKEN_TTL)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logging.Setup(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewTokens(cfg.Auth.JWTSecret, lifetime).Issue(*user)
	if err != nil {
		return err
	}
	slog.Info("Issued token", "user", *user, "expires", time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
	return nil
}
