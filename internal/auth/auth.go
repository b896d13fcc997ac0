// Package auth trusts access tokens issued by the host platform. Tokens are
// RS256 JWTs; this service only holds the public key unless it is asked to
// mint development tokens.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/paygw-chargebee/internal"
)

type ctxKey string

const ContextUserKey ctxKey = "user"

// User is the paying user as described by the host's token.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) User() (*User, error) {
	id, err := strconv.ParseInt(c.UserID, 10, 64)
	if err != nil || id <= 0 {
		return nil, internal.ErrInvalidToken.WithCause(fmt.Errorf("bad user id %q", c.UserID))
	}
	return &User{ID: id, Email: c.Email, FirstName: c.FirstName, LastName: c.LastName}, nil
}

type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	PrivateKey     *rsa.PrivateKey
	PublicKey      *rsa.PublicKey
	AccessTokenTTL time.Duration
}

// NewJWTTokenGenerator builds a generator. privateKey may be nil when the
// generator is only used to validate.
func NewJWTTokenGenerator(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, ttl time.Duration) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		PrivateKey:     privateKey,
		PublicKey:      publicKey,
		AccessTokenTTL: ttl,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(u User) (string, error) {
	if j.PrivateKey == nil {
		return "", errors.New("no private key configured for signing")
	}

	now := time.Now()
	userID := strconv.FormatInt(u.ID, 10)
	claims := &Claims{
		UserID:    userID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(j.PrivateKey)
}

func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.PublicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ContextUserKey).(*User)
	return u, ok
}

func ContextWithUser(ctx context.Context, u *User) context.Context {
	ctx = context.WithValue(ctx, ContextUserKey, u)
	return internal.ContextWithUserID(ctx, u.ID)
}
