package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	AdminToken    string
	JWTSigningKey string

	// Kafka settings for the audit relay. Empty brokers disable the relay.
	KafkaBrokers    []string
	KafkaAuditTopic string
}

// DefaultRequestTimeout bounds request handling across the admin surface.
var DefaultRequestTimeout = 30 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("METIS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("METIS_ADMIN_TOKEN")
	if adminToken == "" {
		adminToken = "dev-admin-token"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "metis.audit.records"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:            addr,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AdminToken:      adminToken,
		JWTSigningKey:   jwtSigningKey,
		KafkaBrokers:    brokers,
		KafkaAuditTopic: topic,
	}
}
