package checkout

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/auth"
	gatewaytypes "github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/paygw-chargebee/internal/transport"
	"github.com/frahmantamala/paygw-chargebee/pkg/logger"
)

type ServiceAPI interface {
	Start(ctx context.Context, user *auth.User, req StartRequest) (string, error)
	Return(ctx context.Context, user *auth.User, req ReturnRequest) *ReturnResult
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// Start handles GET /checkout/start and redirects to the hosted page.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	itemID, err := strconv.ParseInt(q.Get("itemid"), 10, 64)
	if err != nil {
		h.WriteAppError(w, internal.NewValidationError("itemid must be an integer", internal.ErrCodeValidationFailed))
		return
	}

	pageURL, err := h.Service.Start(r.Context(), user, StartRequest{
		Component:   q.Get("component"),
		PaymentArea: q.Get("paymentarea"),
		ItemID:      itemID,
		Description: q.Get("description"),
	})
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	http.Redirect(w, r, pageURL, http.StatusSeeOther)
}

// Return handles the redirect back from Chargebee, which appends id and
// state to the return URL built in Start.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	// A bad itemid fails validation in the service and degrades to a
	// cancellation like any other malformed return.
	itemID, _ := strconv.ParseInt(q.Get("itemid"), 10, 64)

	result := h.Service.Return(r.Context(), user, ReturnRequest{
		SessionID:   q.Get("id"),
		State:       gatewaytypes.SessionState(q.Get("state")),
		Component:   q.Get("component"),
		PaymentArea: q.Get("paymentarea"),
		ItemID:      itemID,
	})

	http.Redirect(w, r, result.Location(), http.StatusSeeOther)
}
