package checkout_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/auth"
	"github.com/frahmantamala/paygw-chargebee/internal/checkout"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/paymentgateway"
	taskmodel "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/task"
	"github.com/frahmantamala/paygw-chargebee/internal/core/events"
	"github.com/frahmantamala/paygw-chargebee/internal/payable"
	"github.com/frahmantamala/paygw-chargebee/internal/paymentgateway"
	"github.com/frahmantamala/paygw-chargebee/internal/reconcile"
)

func TestCheckout(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Checkout Suite")
}

type stubPurchases struct {
	purchase *payable.Purchase
	err      error
}

func (s *stubPurchases) GetPurchase(context.Context, string, string, int64) (*payable.Purchase, error) {
	return s.purchase, s.err
}

type stubGateway struct {
	request *gatewaytypes.CheckoutRequest
	err     error
}

func (g *stubGateway) ClientFor(paymentgateway.Credentials) (paymentgateway.API, error) {
	return g, nil
}

func (g *stubGateway) CreateCheckout(_ context.Context, req *gatewaytypes.CheckoutRequest) (*gatewaytypes.CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.request = req
	return &gatewaytypes.CheckoutSession{ID: "hp_1", URL: "https://acme-test.chargebee.com/pages/v3/hp_1/", State: gatewaytypes.SessionRequested}, nil
}

func (g *stubGateway) FetchSession(context.Context, string) (*gatewaytypes.CheckoutSession, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) FetchInvoice(context.Context, string) (*gatewaytypes.Invoice, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) VoidInvoice(context.Context, string, string) gatewaytypes.VoidResult {
	return gatewaytypes.VoidResult{}
}

func (g *stubGateway) Acknowledge(context.Context, string) error {
	return nil
}

type stubEngine struct {
	calls  int
	result *reconcile.Result
	err    error
}

func (e *stubEngine) Reconcile(_ context.Context, sessionID string, _ payment.PurchaseContext) (*reconcile.Result, error) {
	e.calls++
	return e.result, e.err
}

type memQueue struct {
	mu    sync.Mutex
	tasks []*taskmodel.ReconciliationTask
	err   error
}

func (q *memQueue) Enqueue(_ context.Context, t *taskmodel.ReconciliationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *memQueue) Claim(context.Context, time.Time, int) ([]*taskmodel.ReconciliationTask, error) {
	return nil, nil
}

func (q *memQueue) Complete(context.Context, *taskmodel.ReconciliationTask, string) error {
	return nil
}

func (q *memQueue) Fail(context.Context, *taskmodel.ReconciliationTask, error, time.Time) error {
	return nil
}

func (q *memQueue) Get(context.Context, string) (*taskmodel.ReconciliationTask, error) {
	return nil, errors.New("not used")
}

type recordingEmitter struct {
	kinds []events.Kind
}

func (r *recordingEmitter) Emit(_ context.Context, ev *events.TransactionEvent, err error) {
	Expect(err).NotTo(HaveOccurred())
	r.kinds = append(r.kinds, ev.Type)
}

var _ = Describe("Checkout", func() {
	var (
		purchases *stubPurchases
		gateway   *stubGateway
		engine    *stubEngine
		queue     *memQueue
		emitter   *recordingEmitter
		service   *checkout.Service
		user      *auth.User
		ctx       context.Context
	)

	BeforeEach(func() {
		purchases = &stubPurchases{purchase: &payable.Purchase{
			AccountID:   1,
			Amount:      decimal.RequireFromString("50.00"),
			Currency:    "USD",
			Surcharge:   decimal.NewFromInt(10),
			Description: "Course fee",
			SuccessURL:  "https://lms.example.com/course/3",
			Gateway:     payable.GatewayConfig{SiteName: "acme-test", APIKey: "test_key", CustomerIDPrefix: "AC-"},
		}}
		gateway = &stubGateway{}
		engine = &stubEngine{}
		queue = &memQueue{}
		emitter = &recordingEmitter{}
		service = checkout.NewService(purchases, gateway, engine, queue, emitter, checkout.Config{
			BaseURL:      "https://pay.example.com/",
			ReturnPath:   "/api/v1/checkout/return",
			InitialDelay: 30 * time.Minute,
			MaxAttempts:  5,
		}, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
		user = &auth.User{ID: 42, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
		ctx = context.Background()
	})

	Describe("Start", func() {
		It("creates the hosted page and schedules reconciliation", func() {
			pageURL, err := service.Start(ctx, user, checkout.StartRequest{Component: "enrol_fee", PaymentArea: "fee", ItemID: 7})

			Expect(err).NotTo(HaveOccurred())
			Expect(pageURL).To(Equal("https://acme-test.chargebee.com/pages/v3/hp_1/"))

			req := gateway.request
			Expect(req.Customer.ID).To(Equal("AC-42"))
			Expect(req.Customer.Email).To(Equal("ada@example.com"))
			Expect(req.AmountMinor).To(Equal(int64(5500)))
			Expect(req.Currency).To(Equal("USD"))
			Expect(req.Description).To(Equal("Course fee"))
			Expect(req.RedirectURL).To(Equal("https://pay.example.com/api/v1/checkout/return?component=enrol_fee&itemid=7&paymentarea=fee"))

			Expect(emitter.kinds).To(Equal([]events.Kind{events.KindTransactionStarted}))
			Expect(queue.tasks).To(HaveLen(1))
			t := queue.tasks[0]
			Expect(t.SessionID).To(Equal("hp_1"))
			Expect(t.MaxAttempts).To(Equal(5))
			Expect(t.PurchaseContext()).To(Equal(payment.PurchaseContext{Component: "enrol_fee", PaymentArea: "fee", ItemID: 7, UserID: 42}))
			Expect(t.NextRunAt).To(BeTemporally("~", time.Now().Add(30*time.Minute), time.Minute))
		})

		It("rejects incomplete requests", func() {
			_, err := service.Start(ctx, user, checkout.StartRequest{Component: "enrol_fee", ItemID: 7})

			Expect(internal.HasCode(err, internal.ErrCodeValidationFailed)).To(BeTrue())
			Expect(gateway.request).To(BeNil())
		})

		It("fails when reconciliation cannot be scheduled", func() {
			queue.err = errors.New("database is down")

			_, err := service.Start(ctx, user, checkout.StartRequest{Component: "enrol_fee", PaymentArea: "fee", ItemID: 7})

			Expect(err).To(HaveOccurred())
		})

		It("passes gateway errors through", func() {
			gateway.err = internal.NewExternalError("chargebee unavailable", nil)

			_, err := service.Start(ctx, user, checkout.StartRequest{Component: "enrol_fee", PaymentArea: "fee", ItemID: 7})

			Expect(internal.HasCode(err, internal.ErrCodeGatewayError)).To(BeTrue())
			Expect(queue.tasks).To(BeEmpty())
		})
	})

	Describe("Return", func() {
		returnReq := func(state gatewaytypes.SessionState) checkout.ReturnRequest {
			return checkout.ReturnRequest{SessionID: "hp_1", State: state, Component: "enrol_fee", PaymentArea: "fee", ItemID: 7}
		}

		It("sends the user to the success page once recorded", func() {
			engine.result = &reconcile.Result{Outcome: reconcile.OutcomeRecorded}

			res := service.Return(ctx, user, returnReq(gatewaytypes.SessionSucceeded))

			Expect(res.Status).To(Equal(checkout.StatusSuccess))
			Expect(res.Message).To(Equal(checkout.MessageSuccess))
			Expect(res.RedirectURL).To(Equal("https://lms.example.com/course/3"))
		})

		It("treats an already recorded payment as success", func() {
			engine.result = &reconcile.Result{Outcome: reconcile.OutcomeAcknowledged}

			res := service.Return(ctx, user, returnReq(gatewaytypes.SessionSucceeded))

			Expect(res.Message).To(Equal(checkout.MessageSuccess))
		})

		It("shows the mismatch message on verification failure", func() {
			engine.result = &reconcile.Result{Outcome: reconcile.OutcomeFailed}
			engine.err = reconcile.ErrVerificationMismatch

			res := service.Return(ctx, user, returnReq(gatewaytypes.SessionSucceeded))

			Expect(res.Status).To(Equal(checkout.StatusError))
			Expect(res.Message).To(Equal(checkout.MessageMismatch))
			Expect(res.RedirectURL).To(Equal("https://pay.example.com/"))
		})

		It("degrades gateway errors to a cancellation", func() {
			engine.err = paymentgateway.ErrSessionNotFound

			res := service.Return(ctx, user, returnReq(gatewaytypes.SessionSucceeded))

			Expect(res.Message).To(Equal(checkout.MessageCancelled))
		})

		It("does not reconcile when the user cancelled", func() {
			res := service.Return(ctx, user, returnReq(gatewaytypes.SessionCancelled))

			Expect(res.Message).To(Equal(checkout.MessageCancelled))
			Expect(engine.calls).To(BeZero())
			Expect(emitter.kinds).To(Equal([]events.Kind{events.KindTransactionCancelled}))
		})

		It("attaches the message to the redirect location and keeps its query", func() {
			res := &checkout.ReturnResult{Status: checkout.StatusSuccess, Message: checkout.MessageSuccess, RedirectURL: "https://lms.example.com/course/view?id=3"}

			u, err := url.Parse(res.Location())

			Expect(err).NotTo(HaveOccurred())
			Expect(u.Query().Get("id")).To(Equal("3"))
			Expect(u.Query().Get("message")).To(Equal(checkout.MessageSuccess))
			Expect(u.Query().Get("status")).To(Equal(checkout.StatusSuccess))
		})
	})

	Describe("Handler", func() {
		var handler *checkout.Handler

		BeforeEach(func() {
			handler = checkout.NewHandler(service)
		})

		serve := func(h http.HandlerFunc, target string, withUser bool) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if withUser {
				req = req.WithContext(auth.ContextWithUser(req.Context(), user))
			}
			rec := httptest.NewRecorder()
			h(rec, req)
			return rec
		}

		It("redirects to the hosted page", func() {
			rec := serve(handler.Start, "/api/v1/checkout/start?component=enrol_fee&paymentarea=fee&itemid=7", true)

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			Expect(rec.Header().Get("Location")).To(Equal("https://acme-test.chargebee.com/pages/v3/hp_1/"))
		})

		It("rejects a non numeric item id", func() {
			rec := serve(handler.Start, "/api/v1/checkout/start?component=enrol_fee&paymentarea=fee&itemid=abc", true)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps missing purchases to 404", func() {
			purchases.err = payable.ErrPayableNotFound

			rec := serve(handler.Start, "/api/v1/checkout/start?component=enrol_fee&paymentarea=fee&itemid=7", true)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("redirects back with the outcome message", func() {
			engine.result = &reconcile.Result{Outcome: reconcile.OutcomeRecorded}

			rec := serve(handler.Return, "/api/v1/checkout/return?component=enrol_fee&paymentarea=fee&itemid=7&id=hp_1&state=succeeded", true)

			Expect(rec.Code).To(Equal(http.StatusSeeOther))
			loc, err := url.Parse(rec.Header().Get("Location"))
			Expect(err).NotTo(HaveOccurred())
			Expect(loc.Host).To(Equal("lms.example.com"))
			Expect(loc.Query().Get("message")).To(Equal(checkout.MessageSuccess))
		})

		It("requires an authenticated user", func() {
			rec := serve(handler.Return, "/api/v1/checkout/return?id=hp_1&state=succeeded", false)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
