package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/auth"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var (
		key       *rsa.PrivateKey
		generator *auth.JWTTokenGenerator
		user      auth.User
	)

	ginkgo.BeforeEach(func() {
		var err error
		key, err = rsa.GenerateKey(rand.Reader, 2048)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		generator = auth.NewJWTTokenGenerator(key, &key.PublicKey, 15*time.Minute)
		user = auth.User{ID: 42, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
	})

	ginkgo.It("round trips the user through a signed token", func() {
		token, err := generator.GenerateAccessToken(user)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		claims, err := generator.ValidateToken(token)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		got, err := claims.User()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(*got).To(gomega.Equal(user))
	})

	ginkgo.It("rejects expired tokens", func() {
		expired := auth.NewJWTTokenGenerator(key, &key.PublicKey, -time.Minute)
		token, err := expired.GenerateAccessToken(user)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		_, err = generator.ValidateToken(token)

		gomega.Expect(errors.Is(err, internal.ErrTokenExpired)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects tokens signed by another key", func() {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		token, err := auth.NewJWTTokenGenerator(other, &other.PublicKey, time.Minute).GenerateAccessToken(user)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		_, err = generator.ValidateToken(token)

		gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects HMAC tokens", func() {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{UserID: "42"}).SignedString([]byte("secret"))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		_, err = generator.ValidateToken(token)

		gomega.Expect(errors.Is(err, internal.ErrInvalidToken)).To(gomega.BeTrue())
	})

	ginkgo.It("refuses to sign without a private key", func() {
		_, err := auth.NewJWTTokenGenerator(nil, &key.PublicKey, time.Minute).GenerateAccessToken(user)

		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	ginkgo.Describe("AuthMiddleware", func() {
		var (
			handler *auth.Handler
			seen    *auth.User
			next    http.Handler
		)

		ginkgo.BeforeEach(func() {
			handler = auth.NewHandler(generator, "access_token")
			seen = nil
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = auth.UserFromContext(r.Context())
				gomega.Expect(internal.UserIDFromContext(r.Context())).To(gomega.Equal(int64(42)))
				w.WriteHeader(http.StatusNoContent)
			})
		})

		ginkgo.It("accepts a bearer token", func() {
			token, err := generator.GenerateAccessToken(user)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(seen.ID).To(gomega.Equal(int64(42)))
		})

		ginkgo.It("accepts the session cookie", func() {
			token, err := generator.GenerateAccessToken(user)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(seen.Email).To(gomega.Equal("ada@example.com"))
		})

		ginkgo.It("rejects requests without a token", func() {
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(seen).To(gomega.BeNil())
		})

		ginkgo.It("rejects tokens without a numeric user id", func() {
			token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, &auth.Claims{UserID: "ada"}).SignedString(key)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
