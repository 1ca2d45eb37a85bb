// Command gentoken mints a signed JWT for local development.
// Usage: go run ./cmd/gentoken -rol caissier
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kananavy/pharmacie/internal/config"
	"github.com/kananavy/pharmacie/internal/middleware"
)

func main() {
	rol := flag.String("rol", middleware.RoleAdmin, "admin | pharmacien | caissier | vendeur")
	user := flag.String("user", "", "user UUID (random when empty)")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	switch *rol {
	case middleware.RoleAdmin, middleware.RolePharmacien, middleware.RoleCaissier, middleware.RoleVendeur:
	default:
		log.Fatal().Str("rol", *rol).Msg("unknown role")
	}

	id := *user
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		log.Fatal().Err(err).Msg("user must be a UUID")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	now := time.Now()
	claims := middleware.JWTClaims{
		UserID: id,
		Rol:    *rol,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Fprintln(os.Stdout, signed)
}
