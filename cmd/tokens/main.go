// Command tokens mints a signed JWT for local development and API testing:
//
//	tokens -user 64f1c0ffee0000000000aa01 -admin -ttl 24h
//
// The signing secret comes from the same JWT_SECRET env var the server reads.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pressandpolish/storefront/internal/config"
	"github.com/pressandpolish/storefront/internal/httpx/middlewares"
)

func main() {
	user := flag.String("user", "", "user document ID (hex) to put in the subject claim")
	admin := flag.Bool("admin", false, "set the admin claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "tokens: -user is required")
		os.Exit(2)
	}

	cfg := config.Load()
	now := time.Now()

	claims := middlewares.Claims{
		Admin: *admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   *user,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokens: sign: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
