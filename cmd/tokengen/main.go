// Command tokengen mints a signed connection credential for a given
// identity, for local testing against a running server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"chat-hub/auth"
	"chat-hub/domain"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// config is the credential-issuing slice of the environment, shared with the
// server through the same .env file.
type config struct {
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

func main() {
	_ = godotenv.Load()
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	identityID := flag.String("identity", "", "identity id to embed in the token")
	displayName := flag.String("name", "", "display name (defaults to the identity id)")
	ttl := flag.Duration("ttl", cfg.AuthTokenDuration, "token lifetime (defaults to AUTH_TOKEN_DURATION)")
	flag.Parse()

	if *identityID == "" {
		flag.Usage()
		os.Exit(2)
	}
	name := *displayName
	if name == "" {
		name = *identityID
	}

	token, err := auth.GenerateToken([]byte(cfg.JWTSecret), domain.Identity{
		ID:          domain.IdentityID(*identityID),
		DisplayName: name,
	}, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
