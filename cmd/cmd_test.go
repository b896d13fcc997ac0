package cmd

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/paygw-chargebee/internal"
)

func TestCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cmd Suite")
}

func encodedPublicKey() string {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	Expect(err).NotTo(HaveOccurred())
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	Expect(err).NotTo(HaveOccurred())
	return base64.StdEncoding.EncodeToString(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

var _ = Describe("Commands", func() {
	It("registers every command", func() {
		for _, path := range [][]string{
			{"server"},
			{"worker", "reconcile"},
			{"reconcile"},
			{"migrate"},
			{"seed"},
			{"privacy", "export"},
			{"privacy", "erase"},
			{"events", "list"},
			{"auth", "token"},
		} {
			found, rest, err := rootCmd.Find(path)
			Expect(err).NotTo(HaveOccurred(), "%v", path)
			Expect(rest).To(BeEmpty())
			Expect(found.Name()).To(Equal(path[len(path)-1]))
		}
	})

	DescribeTable("sqlDriverName",
		func(driver, expected string) {
			Expect(sqlDriverName(driver)).To(Equal(expected))
		},
		Entry("postgres uses pgx", "postgres", "pgx"),
		Entry("mysql", "mysql", "mysql"),
		Entry("sqlite", "sqlite", "sqlite3"),
	)

	Describe("loadConfig", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			GinkgoT().Setenv("APP_ENV", "")
			GinkgoT().Setenv("DOCKER_ENV", "")
		})

		writeConfig := func(driver string) {
			yml := fmt.Sprintf(`
http_server:
  port: 8080
  base_url: https://pay.example.com
database:
  driver: %s
  source: "file:%s?cache=shared"
  max_open_conns: 1
  max_idle_conns: 1
  conn_max_lifetime: 30m
  conn_max_idle_time: 5m
security:
  jwt_public_key: %s
  access_token_duration: 15m
  cookie_name: access_token
gateway:
  api_base_url: "https://%%s.chargebee.com/api/v2"
  http_timeout: 20s
  return_path: /api/v1/checkout/return
tasks:
  backend: database
  workers: 2
  batch_size: 10
  poll_interval: 10s
  initial_delay: 30m
  retry_backoff: 1m
  max_attempts: 5
observability:
  logging:
    level: error
    format: json
`, driver, filepath.Join(dir, "paygw.db"), encodedPublicKey())
			Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600)).To(Succeed())
		}

		It("reads and validates config.yml", func() {
			writeConfig("sqlite")

			cfg, err := loadConfig(dir)

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Server.BaseURL).To(Equal("https://pay.example.com"))
			Expect(cfg.Tasks.MaxAttempts).To(Equal(5))
			Expect(cfg.Gateway.APIBaseURL).To(Equal("https://%s.chargebee.com/api/v2"))
		})

		It("rejects an unknown database driver", func() {
			writeConfig("oracle")

			_, err := loadConfig(dir)

			Expect(err).To(MatchError(ContainSubstring("Driver")))
		})

		It("migrates every model on sqlite", func() {
			writeConfig("sqlite")
			cfg, err := loadConfig(dir)
			Expect(err).NotTo(HaveOccurred())

			sqlDB, err := initDB(cfg.Database)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(sqlDB.Close)
			db, err := initGorm(cfg.Database.Driver, sqlDB)
			Expect(err).NotTo(HaveOccurred())

			Expect(db.AutoMigrate(models()...)).To(Succeed())
			for _, table := range []string{"payment_accounts", "payables", "payments", "paygw_chargebee", "entitlements", "paygw_chargebee_events", "paygw_chargebee_tasks"} {
				Expect(db.Migrator().HasTable(table)).To(BeTrue(), table)
			}
		})
	})

	It("requires a public key", func() {
		cfg := internal.SecurityConfig{JWTPublicKey: "not-base64!"}
		Expect(cfg.Validate()).NotTo(Succeed())
	})
})
