package realtime

import (
	"net/http"
	"os"
	"slices"
	"strings"

	"codeberg.org/wavelink/server/internal/logger"
)

func allowedOrigins() []string {
	envOrigins := os.Getenv("ALLOWED_ORIGINS")
	if envOrigins == "" {
		return []string{}
	}

	origins := strings.Split(envOrigins, ",")

	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return origins
}

// CheckOrigin validates the Origin header of upgrade requests. Outside
// production every origin is accepted; in production the origin must be
// listed in ALLOWED_ORIGINS.
func CheckOrigin(r *http.Request) bool {
	if os.Getenv("ENVIRONMENT") != "production" {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		logger.Warn("realtime connection with no origin header")
		return false
	}

	allowed := allowedOrigins()

	if len(allowed) == 0 {
		logger.Warn("realtime origin rejected - ALLOWED_ORIGINS not configured",
			"origin", origin,
		)
		return false
	}

	if slices.Contains(allowed, origin) {
		return true
	}

	logger.Warn("realtime origin rejected - not in allowed origins",
		"origin", origin,
		"allowed_origins", allowed,
	)

	return false
}
