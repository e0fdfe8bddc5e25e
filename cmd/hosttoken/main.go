package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/livequiz/internal/auth/jwt"
	"github.com/gokatarajesh/livequiz/internal/config"
)

// hosttoken mints a host bearer token signed with JWT_SECRET. Host accounts live outside
// this service, so operators use it to hand tokens to quiz hosts.
func main() {
	var (
		hostID = flag.String("host-id", "", "Host UUID; a new one is generated when empty")
		name   = flag.String("name", "Host", "Display name embedded in the token")
	)
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load("configs/.env")
	}

	var sec config.Security
	if err := env.ParseWithOptions(&sec, env.Options{RequiredIfNoDef: true}); err != nil {
		log.Fatal().Err(err).Msg("failed to load security config")
	}

	id := uuid.New()
	if *hostID != "" {
		parsed, err := uuid.Parse(*hostID)
		if err != nil {
			log.Fatal().Err(err).Str("host_id", *hostID).Msg("invalid host id")
		}
		id = parsed
	}

	tokens := jwt.NewManager(jwt.TokenConfig{
		HostSecret: []byte(sec.JWTSecret),
		HostTTL:    sec.HostTokenTTL,
		Issuer:     sec.Issuer,
	})
	token, err := tokens.GenerateHostToken(id, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign host token")
	}

	log.Info().Str("host_id", id.String()).Dur("ttl", sec.HostTokenTTL).Msg("host token issued")
	fmt.Println(token)
}
