package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/SplayLobster/MemoApp2/internal/config"
)

// CORS настраивает CORS middleware используя конфигурацию
func CORS(cfg *config.ConfigGateway) func(http.Handler) http.Handler {
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	// Убираем пробелы из origins
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	maxAge := cfg.CORSMaxAge
	if maxAge == 0 {
		maxAge = 86400 // 24 часа по умолчанию
	}

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           maxAge,
	})
	return c.Handler
}
