// Package auth resolves the calling user from a bearer token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevUserHeader carries a user id directly when dev mode is enabled.
const DevUserHeader = "X-User-ID"

var (
	ErrMissingToken = errors.New("missing auth token")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoUser       = errors.New("user not authenticated")
)

type ctxKey struct{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (string, error) {
	uid, ok := ctx.Value(ctxKey{}).(string)
	if !ok || uid == "" {
		return "", ErrNoUser
	}
	return uid, nil
}

// Authenticator validates HS256 tokens signed with a shared secret. The
// user id is the token subject.
type Authenticator struct {
	secret         []byte
	allowDevHeader bool
	leeway         time.Duration
}

func New(secret string, allowDevHeader bool) *Authenticator {
	return &Authenticator{
		secret:         []byte(secret),
		allowDevHeader: allowDevHeader,
		leeway:         30 * time.Second,
	}
}

// Authenticate returns the user id behind r.
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		if a.allowDevHeader {
			if uid := strings.TrimSpace(r.Header.Get(DevUserHeader)); uid != "" {
				return uid, nil
			}
		}
		return "", ErrMissingToken
	}
	tokenStr, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || len(a.secret) == 0 {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(a.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return sub, nil
}

// Issue signs a token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(a.secret)
}

// Middleware rejects unauthenticated requests with 401 and stores the user
// id in the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("WWW-Authenticate", `Bearer realm="finboard"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": errorMessage(err)})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
	})
}

func errorMessage(err error) string {
	if errors.Is(err, ErrInvalidToken) {
		return ErrInvalidToken.Error()
	}
	return ErrMissingToken.Error()
}
