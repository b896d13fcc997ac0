// Package checkout sends users to a Chargebee hosted page and handles their
// return. The return leg is only a hint: what it reports is always checked
// by the reconciliation engine against a fresh copy of the session.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/auth"
	"github.com/frahmantamala/paygw-chargebee/internal/core/common/validation"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/paygw-chargebee/internal/core/events"
	"github.com/frahmantamala/paygw-chargebee/internal/currency"
	"github.com/frahmantamala/paygw-chargebee/internal/paymentgateway"
	"github.com/frahmantamala/paygw-chargebee/internal/reconcile"
	"github.com/frahmantamala/paygw-chargebee/internal/task"
)

const (
	MessageSuccess   = "Payment was successful."
	MessageCancelled = "Payment was cancelled."
	MessageMismatch  = "Payment could not be verified. Please contact support."

	StatusSuccess = "success"
	StatusError   = "error"
	StatusInfo    = "info"
)

type Config struct {
	// BaseURL is the public URL of this service, without a trailing slash.
	BaseURL      string
	ReturnPath   string
	InitialDelay time.Duration
	MaxAttempts  int
}

type StartRequest struct {
	Component   string `param:"component" validate:"required"`
	PaymentArea string `param:"paymentarea" validate:"required"`
	ItemID      int64  `param:"itemid" validate:"gt=0"`
	Description string `param:"description" validate:"max=255"`
}

type ReturnRequest struct {
	SessionID   string                    `param:"id" validate:"required"`
	State       gatewaytypes.SessionState `param:"state"`
	Component   string                    `param:"component" validate:"required"`
	PaymentArea string                    `param:"paymentarea" validate:"required"`
	ItemID      int64                     `param:"itemid" validate:"gt=0"`
}

// ReturnResult is where the user is sent after coming back from Chargebee.
type ReturnResult struct {
	Outcome     reconcile.Outcome
	Status      string
	Message     string
	RedirectURL string
}

// Location is RedirectURL with the message attached for the host to show.
func (r *ReturnResult) Location() string {
	u, err := url.Parse(r.RedirectURL)
	if err != nil {
		return r.RedirectURL
	}
	q := u.Query()
	q.Set("message", r.Message)
	q.Set("status", r.Status)
	u.RawQuery = q.Encode()
	return u.String()
}

type Reconciler interface {
	Reconcile(ctx context.Context, sessionID string, pc payment.PurchaseContext) (*reconcile.Result, error)
}

type Service struct {
	purchases reconcile.PurchaseProvider
	gateways  paymentgateway.Factory
	engine    Reconciler
	queue     task.Queue
	notifier  reconcile.Emitter
	config    Config
	logger    *slog.Logger
}

func NewService(
	purchases reconcile.PurchaseProvider,
	gateways paymentgateway.Factory,
	engine Reconciler,
	queue task.Queue,
	notifier reconcile.Emitter,
	config Config,
	logger *slog.Logger,
) *Service {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Service{
		purchases: purchases,
		gateways:  gateways,
		engine:    engine,
		queue:     queue,
		notifier:  notifier,
		config:    config,
		logger:    logger,
	}
}

// Start creates a hosted checkout for the purchase and returns the page URL.
// A deferred reconciliation task is scheduled so the payment is settled even
// if the user never comes back.
func (s *Service) Start(ctx context.Context, user *auth.User, req StartRequest) (string, error) {
	if err := validation.Struct(req); err != nil {
		return "", err
	}

	purchase, err := s.purchases.GetPurchase(ctx, req.Component, req.PaymentArea, req.ItemID)
	if err != nil {
		return "", err
	}

	amount, err := currency.ToMinorUnits(purchase.Cost(), purchase.Currency)
	if err != nil {
		return "", internal.NewValidationError(err.Error(), internal.ErrCodeUnsupportedCurrency)
	}

	client, err := s.gateways.ClientFor(purchase.Gateway.Credentials())
	if err != nil {
		return "", err
	}

	description := req.Description
	if description == "" {
		description = purchase.Description
	}
	returnURL := s.returnURL(req)

	session, err := client.CreateCheckout(ctx, &gatewaytypes.CheckoutRequest{
		Customer: gatewaytypes.Customer{
			ID:        purchase.Gateway.CustomerID(user.ID),
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
		AmountMinor: amount,
		Currency:    purchase.Currency,
		Description: description,
		RedirectURL: returnURL,
		CancelURL:   returnURL,
	})
	if err != nil {
		s.logger.Error("failed to create hosted checkout", "user_id", user.ID, "error", err)
		return "", err
	}

	pc := payment.PurchaseContext{
		Component:   req.Component,
		PaymentArea: req.PaymentArea,
		ItemID:      req.ItemID,
		UserID:      user.ID,
	}
	ev, evErr := events.NewTransactionStarted(pc, session.ID)
	s.notifier.Emit(ctx, ev, evErr)

	t := task.NewTask(session.ID, pc, time.Now().Add(s.config.InitialDelay), s.config.MaxAttempts)
	if err := s.queue.Enqueue(ctx, t); err != nil {
		s.logger.Error("failed to schedule reconciliation", "session_id", session.ID, "error", err)
		return "", fmt.Errorf("schedule reconciliation: %w", err)
	}

	s.logger.Info("checkout started",
		"session_id", session.ID,
		"task_id", t.ID,
		"user_id", user.ID,
		"amount", amount,
		"currency", purchase.Currency)
	return session.URL, nil
}

func (s *Service) returnURL(req StartRequest) string {
	q := url.Values{}
	q.Set("component", req.Component)
	q.Set("paymentarea", req.PaymentArea)
	q.Set("itemid", strconv.FormatInt(req.ItemID, 10))
	return s.config.BaseURL + s.config.ReturnPath + "?" + q.Encode()
}

// Return settles the checkout the user came back from. It never fails: any
// problem talking to Chargebee degrades to a cancellation message and the
// deferred task finishes the job later.
func (s *Service) Return(ctx context.Context, user *auth.User, req ReturnRequest) *ReturnResult {
	home := s.config.BaseURL + "/"
	log := s.logger.With("session_id", req.SessionID, "user_id", user.ID)

	if err := validation.Struct(req); err != nil {
		log.Warn("malformed checkout return", "error", err, "details", err.Details)
		return cancelled(home)
	}

	pc := payment.PurchaseContext{
		Component:   req.Component,
		PaymentArea: req.PaymentArea,
		ItemID:      req.ItemID,
		UserID:      user.ID,
	}

	if req.State != gatewaytypes.SessionSucceeded {
		ev, evErr := events.NewTransactionCancelled(pc, req.SessionID)
		s.notifier.Emit(ctx, ev, evErr)
		return cancelled(home)
	}

	purchase, err := s.purchases.GetPurchase(ctx, req.Component, req.PaymentArea, req.ItemID)
	if err != nil {
		log.Warn("could not resolve purchase on return", "error", err)
		return cancelled(home)
	}

	result, err := s.engine.Reconcile(ctx, req.SessionID, pc)
	if result != nil && (result.Outcome == reconcile.OutcomeRecorded || result.Outcome == reconcile.OutcomeAcknowledged) {
		if err != nil {
			log.Error("payment recorded with errors", "outcome", result.Outcome, "error", err)
		}
		successURL := purchase.SuccessURL
		if successURL == "" {
			successURL = home
		}
		return &ReturnResult{Outcome: result.Outcome, Status: StatusSuccess, Message: MessageSuccess, RedirectURL: successURL}
	}

	if internal.HasCode(err, internal.ErrCodeVerificationMismatch) {
		return &ReturnResult{Outcome: reconcile.OutcomeFailed, Status: StatusError, Message: MessageMismatch, RedirectURL: home}
	}
	if err != nil {
		log.Warn("reconciliation on return failed", "error", err)
		return cancelled(home)
	}

	res := cancelled(home)
	res.Outcome = result.Outcome
	return res
}

func cancelled(home string) *ReturnResult {
	return &ReturnResult{Outcome: reconcile.OutcomeNoop, Status: StatusInfo, Message: MessageCancelled, RedirectURL: home}
}
