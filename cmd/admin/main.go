package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"pitchmatch/backend/internal/auth"
	"pitchmatch/backend/internal/config"
	"pitchmatch/backend/internal/models"
	"pitchmatch/backend/internal/presence"

	"github.com/redis/go-redis/v9"
)

const usage = `Usage: admin <command> [args]

Commands:
  presence-list                list users currently flagged online
  presence-clear <user_id>     clear a stale online flag
  token <user_id> <role>       mint an access token (role: founder|investor)`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := dispatch(ctx, cfg, os.Stdout, os.Args[1:]); err != nil {
		cancel()
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

var errUsage = errors.New(usage)

func dispatch(ctx context.Context, cfg config.Config, out io.Writer, args []string) error {
	switch args[0] {
	case "presence-list":
		reg, closeFn, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		return listOnline(ctx, reg, out)
	case "presence-clear":
		if len(args) != 2 {
			return errUsage
		}
		reg, closeFn, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		if err := reg.ClearOnline(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "User %s is now offline.\n", args[1])
		return nil
	case "token":
		if len(args) != 3 {
			return errUsage
		}
		return mintToken(cfg, out, args[1], models.Role(args[2]))
	default:
		return errUsage
	}
}

// openRegistry connects to the shared registry. Without Redis, presence only
// lives inside the server process and cannot be inspected from here.
func openRegistry(cfg config.Config) (presence.Registry, func(), error) {
	if cfg.RedisAddr == "" {
		return nil, nil, errors.New("REDIS_ADDR is not set; presence is local to the server process")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return presence.NewRedisRegistry(rdb), func() { _ = rdb.Close() }, nil
}

func listOnline(ctx context.Context, reg presence.Registry, out io.Writer) error {
	users, err := reg.OnlineUsers(ctx)
	if err != nil {
		return err
	}
	for _, id := range users {
		fmt.Fprintln(out, id)
	}
	fmt.Fprintf(out, "%d user(s) online\n", len(users))
	return nil
}

func mintToken(cfg config.Config, out io.Writer, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("role must be %q or %q", models.RoleFounder, models.RoleInvestor)
	}
	token, err := auth.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL).GenerateToken(userID, role)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
