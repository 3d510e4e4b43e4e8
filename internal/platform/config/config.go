package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	id "sealedger/pkg/domain"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	Owner         id.Address
	AdminToken    string
	JWTSigningKey string
	SealingKey    []byte

	// Optional backends; empty values select the in-memory stores.
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
}

// FromEnv builds a Server config from environment variables so main stays
// lean. The sealing key and owner address have no safe defaults and must be
// provided.
func FromEnv() (Server, error) {
	addr := os.Getenv("SEALEDGER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	owner := id.Address(os.Getenv("SEALEDGER_OWNER"))
	if owner.IsZero() {
		return Server{}, fmt.Errorf("SEALEDGER_OWNER is required")
	}

	sealingHex := os.Getenv("SEALEDGER_SEALING_KEY")
	if sealingHex == "" {
		return Server{}, fmt.Errorf("SEALEDGER_SEALING_KEY is required")
	}
	sealingKey, err := hex.DecodeString(sealingHex)
	if err != nil {
		return Server{}, fmt.Errorf("SEALEDGER_SEALING_KEY must be hex: %w", err)
	}

	adminToken := os.Getenv("SEALEDGER_ADMIN_TOKEN")
	if adminToken == "" {
		// Development default, must be overridden in production.
		adminToken = "dev-admin-token"
	}
	jwtKey := os.Getenv("SEALEDGER_JWT_SIGNING_KEY")
	if jwtKey == "" {
		jwtKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("SEALEDGER_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:          addr,
		Owner:         owner,
		AdminToken:    adminToken,
		JWTSigningKey: jwtKey,
		SealingKey:    sealingKey,
		PostgresDSN:   os.Getenv("SEALEDGER_POSTGRES_DSN"),
		RedisAddr:     os.Getenv("SEALEDGER_REDIS_ADDR"),
		KafkaBrokers:  brokers,
	}, nil
}
