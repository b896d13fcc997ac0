package auth

import (
	"errors"
	"net/http"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/transport"
	"github.com/frahmantamala/paygw-chargebee/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Tokens     TokenValidator
	CookieName string
}

func NewHandler(tokens TokenValidator, cookieName string) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Tokens:      tokens,
		CookieName:  cookieName,
	}
}

// tokenFromRequest prefers the Authorization header over the session cookie.
func (h *Handler) tokenFromRequest(r *http.Request) string {
	if token := h.ExtractTokenFromHeader(r); token != "" {
		return token
	}
	if h.CookieName == "" {
		return ""
	}
	if c, err := r.Cookie(h.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.tokenFromRequest(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Tokens.ValidateToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			if errors.Is(err, internal.ErrTokenExpired) {
				h.WriteError(w, http.StatusUnauthorized, "token expired")
				return
			}
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := claims.User()
		if err != nil {
			h.Logger.Warn("token carries no usable user id", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		ctx = logger.With(ctx, "user_id", user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
