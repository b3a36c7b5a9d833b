package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/auth"
)

type contextKey string

// SubjectKey ключ контекста с subject из проверенного токена
const SubjectKey contextKey = "subject"

// Auth проверяет bearer токен. Если проверка отключена, пропускает запрос как есть.
// Пути из skip не проверяются (health checks).
func Auth(log *zap.SugaredLogger, verifier *auth.Verifier, skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(next http.Handler) http.Handler {
		if !verifier.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight идет без заголовка авторизации
			if r.Method == http.MethodOptions || skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				log.Warnw("invalid token", "path", r.URL.Path, "remote", r.RemoteAddr, "error", err)
				http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
