package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cmlabs-hris/attendance-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/attendance-backend-go/internal/handler/http/response"
)

// RequireCronSecret admits scheduler calls that present the shared secret
// as a bearer token or as the "secret" query parameter.
func RequireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" || !validCronSecret(r, secret) {
				response.HandleError(w, auth.ErrInvalidCronSecret)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validCronSecret accepts the request when either the bearer token or the query secret matches.
func validCronSecret(r *http.Request, secret string) bool {
	candidates := []string{r.URL.Query().Get("secret")}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		candidates = append(candidates, strings.TrimSpace(bearer))
	}
	for _, presented := range candidates {
		if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}
