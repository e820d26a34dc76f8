package transport

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/arcadeparty/backend/internal/v1/logging"
)

// AllowedOriginsFromEnv reads a comma-separated origin list from the named
// environment variable. Example: ALLOWED_ORIGINS="http://localhost:3000,https://play.example.com"
func AllowedOriginsFromEnv(envVarName string, defaults []string) []string {
	raw := os.Getenv(envVarName)
	if raw == "" {
		logging.Warn(context.Background(), fmt.Sprintf("%s environment variable not set. Using default development origins: %v", envVarName, defaults))
		return defaults
	}

	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
