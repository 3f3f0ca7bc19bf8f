package api

import (
	"context"
	"net/http"
	"strings"
)

// AnonymousOperator is recorded when authentication is disabled.
const AnonymousOperator = "anonymous"

// Authenticator is the auth collaborator: it turns a request into the
// operator name recorded on receives and events.
type Authenticator interface {
	Authenticate(r *http.Request) (operator string, ok bool)
}

// StaticTokens authenticates "Authorization: Bearer <token>" against a
// fixed token -> operator map. An empty map lets every request through as
// AnonymousOperator.
type StaticTokens struct {
	tokens map[string]string
}

func NewStaticTokens(tokens map[string]string) *StaticTokens {
	return &StaticTokens{tokens: tokens}
}

func (a *StaticTokens) Authenticate(r *http.Request) (string, bool) {
	if len(a.tokens) == 0 {
		return AnonymousOperator, true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	operator, ok := a.tokens[strings.TrimSpace(token)]
	return operator, ok
}

type operatorKey struct{}

// RequireAuth rejects unauthenticated requests with 401 and stores the
// operator in the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operator, ok := a.Authenticate(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			ctx := context.WithValue(r.Context(), operatorKey{}, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorFrom returns the authenticated operator, or "" outside RequireAuth.
func OperatorFrom(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey{}).(string)
	return op
}
