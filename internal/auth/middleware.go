package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
// A package-private key type means no other package can read or shadow the
// caller id by accident with a plain string key.
type contextKey string

const userIDKey contextKey = "userID"

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
//
// The scheme is case-sensitive and must be followed by exactly one space.
// A missing header, any other scheme, or an empty token segment all yield
// ("", false): absence of a token is not an error here, RequireAuth and the
// article guard decide whether it is fatal.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", false
	}
	if token == "" || strings.Contains(token, " ") {
		return "", false
	}

	return token, true
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the Bearer token, validates it, and stores the userID in the
// request context. If the token is missing or invalid, it returns 401
// Unauthorized and stops the request chain.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := callerFromRequest(r, tokens)
			if !ok {
				writeGuardError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth extracts the user identity if a valid token is present, but
// does NOT block the request if it's missing or invalid.
//
// Used on /article/search: anonymous callers only see PUBLIC articles, while
// a verified caller also sees RESTRICTED ones and their own PRIVATE ones.
// A bad token degrades to anonymous rather than failing the search.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := callerFromRequest(r, tokens); ok {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying the resolved caller id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous (no valid token was present).
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func callerFromRequest(r *http.Request, tokens *TokenService) (string, bool) {
	token, ok := BearerToken(r)
	if !ok {
		return "", false
	}
	return tokens.VerifySessionToken(token)
}

// writeGuardError writes the same {"error","message"} shape the handler
// package uses, so guard rejections look like any other API error.
func writeGuardError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorType,
		"message": message,
	})
}
