package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims is the access token issued by the auth flow.
type TokenClaims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type ctxAccountKey struct{}

// AccountID returns the authenticated caller, empty when there is none.
func AccountID(r *http.Request) string {
	id, _ := r.Context().Value(ctxAccountKey{}).(string)
	return id
}

func withAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxAccountKey{}, id)
}

// identify resolves the caller. With a secret the caller comes from a bearer
// token, otherwise from X-User-Id. Optional routes let anonymous callers
// through but still reject bad credentials.
func identify(secret []byte, optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, msg := resolveCaller(r, secret)
			if !ok {
				writeError(w, http.StatusUnauthorized, msg)
				return
			}
			if id == "" {
				if !optional {
					writeError(w, http.StatusUnauthorized, "missing user context")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withAccountID(r.Context(), id)))
		})
	}
}

// InternalTokenHeader carries the shared secret of trusted internal callers.
const InternalTokenHeader = "X-Internal-Token"

// internalOnly admits requests carrying token. An empty token rejects
// everything.
func internalOnly(token []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(InternalTokenHeader))
			if len(token) == 0 || subtle.ConstantTimeCompare(got, token) != 1 {
				writeError(w, http.StatusUnauthorized, "internal token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveCaller(r *http.Request, secret []byte) (string, bool, string) {
	if len(secret) == 0 {
		id := strings.TrimSpace(r.Header.Get("X-User-Id"))
		if id == "" {
			return "", true, ""
		}
		if _, err := uuid.Parse(id); err != nil {
			return "", false, "invalid user id"
		}
		return id, true, ""
	}

	raw := bearerToken(r)
	if raw == "" {
		return "", true, ""
	}
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.TokenType != "access" {
		return "", false, "invalid token"
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return "", false, "invalid token"
	}
	return claims.UserID, true, ""
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on websocket upgrades, so the token query parameter is accepted too.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
