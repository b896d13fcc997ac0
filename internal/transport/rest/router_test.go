package rest_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/paygw-chargebee/internal/auth"
	"github.com/frahmantamala/paygw-chargebee/internal/checkout"
	"github.com/frahmantamala/paygw-chargebee/internal/transport/middleware"
	"github.com/frahmantamala/paygw-chargebee/internal/transport/rest"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "REST Suite")
}

type stubCheckout struct {
	user *auth.User
}

func (s *stubCheckout) Start(_ context.Context, user *auth.User, _ checkout.StartRequest) (string, error) {
	s.user = user
	return "https://acme-test.chargebee.com/pages/v3/hp_1/", nil
}

func (s *stubCheckout) Return(_ context.Context, user *auth.User, _ checkout.ReturnRequest) *checkout.ReturnResult {
	s.user = user
	return &checkout.ReturnResult{Status: checkout.StatusInfo, Message: checkout.MessageCancelled, RedirectURL: "https://pay.example.com/"}
}

var _ = Describe("Router", func() {
	var (
		router    *chi.Mux
		svc       *stubCheckout
		generator *auth.JWTTokenGenerator
	)

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())

		key, err := rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).NotTo(HaveOccurred())
		generator = auth.NewJWTTokenGenerator(key, &key.PublicKey, time.Minute)

		svc = &stubCheckout{}
		log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		router = chi.NewRouter()
		rest.RegisterAllRoutes(router,
			rest.NewHealthHandler(sqlDB, nil),
			auth.NewHandler(generator, "access_token"),
			checkout.NewHandler(svc),
			log)
	})

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("reports the database as healthy", func() {
		rec := do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body rest.HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Status).To(Equal(rest.HealthHealthy))
		Expect(body.Components).To(HaveKey("database"))
	})

	It("answers ping and echoes the trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
		req.Header.Set(middleware.TraceIDHeader, "trace-1")

		rec := do(req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get(middleware.TraceIDHeader)).To(Equal("trace-1"))
	})

	It("serves the openapi document", func() {
		rec := do(httptest.NewRequest(http.MethodGet, "/openapi.yml", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("/checkout/return"))
	})

	It("protects the checkout routes", func() {
		rec := do(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/start?component=enrol_fee&paymentarea=fee&itemid=7", nil))

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(svc.user).To(BeNil())
	})

	It("routes authenticated users to checkout", func() {
		token, err := generator.GenerateAccessToken(auth.User{ID: 42, Email: "ada@example.com"})
		Expect(err).NotTo(HaveOccurred())
		req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/start?component=enrol_fee&paymentarea=fee&itemid=7", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := do(req)

		Expect(rec.Code).To(Equal(http.StatusSeeOther))
		Expect(svc.user.ID).To(Equal(int64(42)))
	})
})
