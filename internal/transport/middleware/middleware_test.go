package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/paygw-chargebee/pkg/logger"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("Middleware", func() {
	var (
		buf *bytes.Buffer
		log *slog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		log = slog.New(slog.NewJSONHandler(buf, nil))
	})

	Describe("RequestID", func() {
		It("generates a trace id when none is supplied", func() {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = logger.TraceID(r.Context())
			}))
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(seen).NotTo(BeEmpty())
			Expect(rec.Header().Get(TraceIDHeader)).To(Equal(seen))
		})
	})

	Describe("RecoveryMiddleware", func() {
		It("answers 500 without leaking the panic value", func() {
			h := RequestID(RecoveryMiddleware(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("site api key leaked")
			})))
			req := httptest.NewRequest(http.MethodGet, "/boom", nil)
			req.Header.Set(TraceIDHeader, "trace-9")
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			Expect(rec.Body.String()).NotTo(ContainSubstring("site api key"))
			var body map[string]map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body["error"]["code"]).To(Equal("INTERNAL_ERROR"))
			Expect(buf.String()).To(ContainSubstring(`"trace_id":"trace-9"`))
		})
	})

	Describe("LoggingMiddleware", func() {
		It("filters credentials from the logged request", func() {
			h := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", "https://acme.chargebee.com/pages/v3/hp_1/?token=abc123&status=success")
				w.WriteHeader(http.StatusSeeOther)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/start?itemid=7&access_token=abc123", nil)
			req.Header.Set("Authorization", "Bearer abc123")
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(buf.String()).NotTo(ContainSubstring("abc123"))
			Expect(buf.String()).To(ContainSubstring(`"status_code":303`))
		})
	})

	DescribeTable("filterSensitiveQuery",
		func(raw, expected string) {
			values, err := url.ParseQuery(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(filterSensitiveQuery(values)).To(Equal(expected))
		},
		Entry("plain parameters pass through", "id=hp_1&state=succeeded", "id=hp_1&state=succeeded"),
		Entry("api keys are masked", "api_key=live_x&itemid=7", "api_key=%5BFILTERED%5D&itemid=7"),
		Entry("tokens are masked", "access_token=abc", "access_token=%5BFILTERED%5D"),
	)

	It("filters nested JSON fields", func() {
		out := filterSensitiveBody([]byte(`{"site":"acme","gateway":{"apiKey":"live_x"},"amount":5000}`))

		Expect(out).To(ContainSubstring(`"apiKey":"[FILTERED]"`))
		Expect(out).To(ContainSubstring(`"site":"acme"`))
	})
})
