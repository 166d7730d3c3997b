// tokengen issues a bearer token for the back-office API, signed with AUTH_JWT_SECRET.
//
//	tokengen -user 42 -role admin -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/transport/httpApi/middleware"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type tokenConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET,required"`
}

func main() {
	userID := flag.Int64("user", 0, "user id (token subject)")
	role := flag.String("role", string(model.RoleUser), "user | admin | super_admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID <= 0 {
		log.Fatal("-user is required")
	}

	switch model.UserRole(*role) {
	case model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	_ = godotenv.Load(".env")

	var cfg tokenConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	token, err := middleware.SignToken([]byte(cfg.JWTSecret), model.Actor{UserID: *userID, Role: model.UserRole(*role)}, *ttl)
	if err != nil {
		log.Fatalf("sign token: %s", err)
	}

	fmt.Println(token)
}
