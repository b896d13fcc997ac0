// Package payable resolves what a purchase costs and which Chargebee account
// collects it.
package payable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payable"
	"github.com/frahmantamala/paygw-chargebee/internal/currency"
	"github.com/frahmantamala/paygw-chargebee/internal/paymentgateway"
)

var (
	ErrPayableNotFound     = internal.NewNotFoundError("payable item not found", internal.ErrCodePayableNotFound)
	ErrGatewayDisabled     = internal.NewValidationError("chargebee is not configured for this payment account", internal.ErrCodeGatewayDisabled)
	ErrUnsupportedCurrency = internal.NewValidationError("currency is not supported by chargebee", internal.ErrCodeUnsupportedCurrency)
)

type RepositoryAPI interface {
	GetByItem(ctx context.Context, component, paymentArea string, itemID int64) (*payable.Payable, error)
	SaveAccount(ctx context.Context, a *payable.Account) error
	SavePayable(ctx context.Context, p *payable.Payable) error
}

// GatewayConfig is the per-account Chargebee configuration.
type GatewayConfig struct {
	SiteName         string
	APIKey           string
	CustomerIDPrefix string
	AutoVoidInvoice  bool
}

func (g GatewayConfig) Credentials() paymentgateway.Credentials {
	return paymentgateway.Credentials{SiteName: g.SiteName, APIKey: g.APIKey}
}

// CustomerID is the Chargebee customer id used for userID.
func (g GatewayConfig) CustomerID(userID int64) string {
	return g.CustomerIDPrefix + strconv.FormatInt(userID, 10)
}

type Purchase struct {
	AccountID   int64
	Amount      decimal.Decimal
	Currency    string
	Surcharge   decimal.Decimal
	Description string
	SuccessURL  string
	Gateway     GatewayConfig
}

// Cost is the amount the user is charged, surcharge included.
func (p *Purchase) Cost() decimal.Decimal {
	return currency.RoundedCost(p.Amount, p.Currency, p.Surcharge)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetPurchase(ctx context.Context, component, paymentArea string, itemID int64) (*Purchase, error) {
	item, err := s.repo.GetByItem(ctx, component, paymentArea, itemID)
	if err != nil {
		if !errors.Is(err, ErrPayableNotFound) {
			s.logger.Error("failed to load payable", "component", component, "payment_area", paymentArea, "item_id", itemID, "error", err)
		}
		return nil, fmt.Errorf("get payable: %w", err)
	}

	account := item.Account
	if !account.Enabled || account.SiteName == "" || account.APIKey == "" {
		s.logger.Warn("chargebee gateway not configured", "account_id", account.ID)
		return nil, ErrGatewayDisabled
	}

	code := strings.ToUpper(item.Currency)
	if !currency.IsSupported(code) {
		return nil, ErrUnsupportedCurrency.WithDetails(map[string]string{"currency": code})
	}

	return &Purchase{
		AccountID:   account.ID,
		Amount:      item.Amount,
		Currency:    code,
		Surcharge:   account.Surcharge,
		Description: item.Description,
		SuccessURL:  item.SuccessURL,
		Gateway: GatewayConfig{
			SiteName:         account.SiteName,
			APIKey:           account.APIKey,
			CustomerIDPrefix: account.CustomerIDPrefix,
			AutoVoidInvoice:  account.AutoVoidInvoice,
		},
	}, nil
}
