package internal_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/paygw-chargebee/internal"
)

func encodedKeyPair() (string, string) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).NotTo(HaveOccurred())

	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	Expect(err).NotTo(HaveOccurred())
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	return base64.StdEncoding.EncodeToString(priv), base64.StdEncoding.EncodeToString(pub)
}

func validConfig() *internal.Config {
	priv, pub := encodedKeyPair()
	return &internal.Config{
		Server: internal.ServerConfig{
			Port:              8080,
			BaseURL:           "http://localhost:8080",
			ReadHeaderTimeout: time.Second,
			ReadTimeout:       5 * time.Second,
		},
		Database: internal.DatabaseConfig{
			Driver:          "sqlite",
			Source:          "file::memory:",
			MaxOpenConns:    5,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: time.Minute,
		},
		Security: internal.SecurityConfig{
			JWTPublicKey:        pub,
			JWTPrivateKey:       priv,
			AccessTokenDuration: 15 * time.Minute,
		},
		Gateway: internal.GatewayConfig{
			APIBaseURL:  "https://%s.chargebee.com/api/v2",
			HTTPTimeout: 10 * time.Second,
			ReturnPath:  "/api/v1/checkout/return",
		},
		Tasks: internal.TaskConfig{
			Backend:      "database",
			Workers:      2,
			BatchSize:    10,
			PollInterval: time.Second,
			RetryBackoff: time.Minute,
		},
		Observability: internal.ObservabilityConfig{
			Logging: internal.LoggingConfig{Level: "info", Format: "text"},
		},
	}
}

var _ = Describe("Config", func() {
	Describe("Validate", func() {
		It("accepts a complete configuration", func() {
			cfg := validConfig()
			Expect(cfg.Validate()).To(Succeed())
		})

		It("rejects an unknown database driver", func() {
			cfg := validConfig()
			cfg.Database.Driver = "oracle"

			err := cfg.Validate()

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Driver"))
		})

		It("requires a redis address for the redis task backend", func() {
			cfg := validConfig()
			cfg.Tasks.Backend = "redis"

			err := cfg.Validate()

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("redis.addr is required"))
		})

		It("rejects idle connections above the open limit", func() {
			cfg := validConfig()
			cfg.Database.MaxIdleConns = 10

			Expect(cfg.Validate()).To(MatchError(ContainSubstring("max_idle_conns")))
		})

		It("rejects a malformed public key", func() {
			cfg := validConfig()
			cfg.Security.JWTPublicKey = base64.StdEncoding.EncodeToString([]byte("not pem"))

			Expect(cfg.Validate()).To(MatchError(ContainSubstring("invalid JWT public key")))
		})

		It("allows the private key to be omitted", func() {
			cfg := validConfig()
			cfg.Security.JWTPrivateKey = ""

			Expect(cfg.Validate()).To(Succeed())
		})
	})
})

var _ = Describe("AppError", func() {
	It("keeps sentinel identity through WithCause", func() {
		sentinel := internal.NewConflictError("already there", internal.ErrCodeAlreadyRecorded)
		wrapped := fmt.Errorf("insert: %w", sentinel.WithCause(errors.New("unique violation")))

		Expect(errors.Is(wrapped, sentinel)).To(BeTrue())
		Expect(sentinel.Cause).To(BeNil())
	})

	It("finds codes anywhere in the chain", func() {
		inner := internal.NewExternalError("chargebee unreachable", errors.New("dial tcp"))
		outer := internal.NewInternalError("reconcile failed", inner)

		Expect(internal.HasCode(outer, internal.ErrCodeGatewayError)).To(BeTrue())
		Expect(internal.HasCode(outer, internal.ErrCodeSessionNotFound)).To(BeFalse())
	})
})
