package paymentgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/paygw-chargebee/internal"
	gatewaytypes "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/paymentgateway"
)

const (
	DefaultBaseURL = "https://%s.chargebee.com/api/v2"
	defaultTimeout = 20 * time.Second

	errCodeInvalidState = "invalid_state_for_request"
)

var (
	ErrSessionNotFound = internal.NewNotFoundError("checkout session not found", internal.ErrCodeSessionNotFound)
	ErrInvoiceNotFound = internal.NewNotFoundError("invoice not found", internal.ErrCodeRecordNotFound)
)

// API is the subset of the Chargebee REST API the reconciliation flow needs.
type API interface {
	CreateCheckout(ctx context.Context, req *gatewaytypes.CheckoutRequest) (*gatewaytypes.CheckoutSession, error)
	FetchSession(ctx context.Context, sessionID string) (*gatewaytypes.CheckoutSession, error)
	FetchInvoice(ctx context.Context, invoiceID string) (*gatewaytypes.Invoice, error)
	VoidInvoice(ctx context.Context, invoiceID, comment string) gatewaytypes.VoidResult
	Acknowledge(ctx context.Context, sessionID string) error
}

type Config struct {
	SiteName string
	APIKey   string
	// BaseURL may contain a single %s which is replaced by SiteName.
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// APIError is the error envelope Chargebee returns on non-2xx responses.
type APIError struct {
	HTTPStatus   int    `json:"http_status_code"`
	Type         string `json:"type"`
	APIErrorCode string `json:"api_error_code"`
	Message      string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chargebee %d %s: %s", e.HTTPStatus, e.APIErrorCode, e.Message)
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) (*Client, error) {
	if config.SiteName == "" || config.APIKey == "" {
		return nil, internal.NewValidationError("chargebee site name and api key are required", internal.ErrCodeGatewayDisabled)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if strings.Contains(baseURL, "%s") {
		baseURL = fmt.Sprintf(baseURL, config.SiteName)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     config.APIKey,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger.With("site", config.SiteName),
	}, nil
}

type hostedPage struct {
	ID      string                    `json:"id"`
	URL     string                    `json:"url"`
	State   gatewaytypes.SessionState `json:"state"`
	Content struct {
		Invoice  *gatewaytypes.Invoice  `json:"invoice"`
		Customer *gatewaytypes.Customer `json:"customer"`
	} `json:"content"`
}

func (p *hostedPage) toSession() *gatewaytypes.CheckoutSession {
	return &gatewaytypes.CheckoutSession{
		ID:       p.ID,
		URL:      p.URL,
		State:    p.State,
		Invoice:  p.Content.Invoice,
		Customer: p.Content.Customer,
	}
}

// CreateCheckout opens a one-time hosted checkout page for a single charge.
func (c *Client) CreateCheckout(ctx context.Context, req *gatewaytypes.CheckoutRequest) (*gatewaytypes.CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		c.logger.Error("checkout request validation failed", "error", err)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	form := url.Values{}
	form.Set("currency_code", strings.ToUpper(req.Currency))
	form.Set("redirect_url", req.RedirectURL)
	if req.CancelURL != "" {
		form.Set("cancel_url", req.CancelURL)
	}
	form.Set("customer[id]", req.Customer.ID)
	if req.Customer.Email != "" {
		form.Set("customer[email]", req.Customer.Email)
	}
	if req.Customer.FirstName != "" {
		form.Set("customer[first_name]", req.Customer.FirstName)
	}
	if req.Customer.LastName != "" {
		form.Set("customer[last_name]", req.Customer.LastName)
	}
	form.Set("charges[amount][0]", strconv.FormatInt(req.AmountMinor, 10))
	if req.Description != "" {
		form.Set("charges[description][0]", req.Description)
	}

	c.logger.Info("chargebee: creating hosted checkout",
		"customer_id", req.Customer.ID,
		"amount", req.AmountMinor,
		"currency", req.Currency)

	var resp struct {
		HostedPage hostedPage `json:"hosted_page"`
	}
	if err := c.do(ctx, http.MethodPost, "/hosted_pages/checkout_one_time", form, &resp); err != nil {
		return nil, c.classify(err, nil, "create checkout")
	}

	return resp.HostedPage.toSession(), nil
}

func (c *Client) FetchSession(ctx context.Context, sessionID string) (*gatewaytypes.CheckoutSession, error) {
	c.logger.Debug("chargebee: fetching hosted page", "session_id", sessionID)

	var resp struct {
		HostedPage hostedPage `json:"hosted_page"`
	}
	if err := c.do(ctx, http.MethodGet, "/hosted_pages/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, c.classify(err, ErrSessionNotFound, "fetch hosted page")
	}

	return resp.HostedPage.toSession(), nil
}

func (c *Client) FetchInvoice(ctx context.Context, invoiceID string) (*gatewaytypes.Invoice, error) {
	c.logger.Debug("chargebee: fetching invoice", "invoice_id", invoiceID)

	var resp struct {
		Invoice gatewaytypes.Invoice `json:"invoice"`
	}
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(invoiceID), nil, &resp); err != nil {
		return nil, c.classify(err, ErrInvoiceNotFound, "fetch invoice")
	}

	return &resp.Invoice, nil
}

// VoidInvoice never returns an error; failures are reported in the result.
func (c *Client) VoidInvoice(ctx context.Context, invoiceID, comment string) gatewaytypes.VoidResult {
	form := url.Values{}
	if comment != "" {
		form.Set("comment", comment)
	}

	var resp struct {
		Invoice gatewaytypes.Invoice `json:"invoice"`
	}
	if err := c.do(ctx, http.MethodPost, "/invoices/"+url.PathEscape(invoiceID)+"/void", form, &resp); err != nil {
		c.logger.Warn("chargebee: void invoice failed", "invoice_id", invoiceID, "error", err)
		return gatewaytypes.VoidResult{InvoiceID: invoiceID, Err: err}
	}

	result := gatewaytypes.VoidResult{
		InvoiceID: invoiceID,
		Status:    resp.Invoice.Status,
		Voided:    resp.Invoice.Status == gatewaytypes.InvoiceVoided,
	}
	c.logger.Info("chargebee: void invoice", "invoice_id", invoiceID, "status", result.Status)
	return result
}

// Acknowledge marks a succeeded hosted page as processed. Acknowledging an
// already acknowledged page is not an error.
func (c *Client) Acknowledge(ctx context.Context, sessionID string) error {
	var resp struct {
		HostedPage hostedPage `json:"hosted_page"`
	}
	err := c.do(ctx, http.MethodPost, "/hosted_pages/"+url.PathEscape(sessionID)+"/acknowledge", url.Values{}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.APIErrorCode == errCodeInvalidState {
			c.logger.Info("chargebee: hosted page already acknowledged", "session_id", sessionID)
			return nil
		}
		return c.classify(err, ErrSessionNotFound, "acknowledge hosted page")
	}

	c.logger.Info("chargebee: hosted page acknowledged", "session_id", sessionID)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if apiErr.HTTPStatus == 0 {
			apiErr.HTTPStatus = resp.StatusCode
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classify maps transport failures onto the error taxonomy. A 404 becomes
// notFound when the caller supplies one; everything else is a gateway error.
func (c *Client) classify(err error, notFound *internal.AppError, op string) error {
	var apiErr *APIError
	if notFound != nil && errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusNotFound {
		return notFound.WithCause(apiErr)
	}
	c.logger.Error("chargebee: request failed", "operation", op, "error", err)
	return internal.NewExternalError("chargebee "+op+" failed", err)
}

// Credentials identify one Chargebee site.
type Credentials struct {
	SiteName string
	APIKey   string
}

// Factory builds a client per payment account so that credentials are never
// held process-wide.
type Factory interface {
	ClientFor(creds Credentials) (API, error)
}

type ClientFactory struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClientFactory(cfg internal.GatewayConfig, logger *slog.Logger) *ClientFactory {
	return &ClientFactory{
		baseURL:    cfg.APIBaseURL,
		timeout:    cfg.HTTPTimeout,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
	}
}

func (f *ClientFactory) ClientFor(creds Credentials) (API, error) {
	client, err := NewClient(Config{
		SiteName:   creds.SiteName,
		APIKey:     creds.APIKey,
		BaseURL:    f.baseURL,
		Timeout:    f.timeout,
		HTTPClient: f.httpClient,
	}, f.logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
