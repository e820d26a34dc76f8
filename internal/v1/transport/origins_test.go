package transport

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedOriginsFromEnv_WithValue(t *testing.T) {
	_ = os.Setenv("TEST_ORIGINS", "http://localhost:3000,https://play.example.com")
	defer func() { _ = os.Unsetenv("TEST_ORIGINS") }()

	origins := AllowedOriginsFromEnv("TEST_ORIGINS", []string{"http://default"})

	assert.Equal(t, []string{"http://localhost:3000", "https://play.example.com"}, origins)
}

func TestAllowedOriginsFromEnv_TrimsWhitespace(t *testing.T) {
	_ = os.Setenv("TEST_ORIGINS_SPACED", "http://localhost:3000, https://play.example.com ")
	defer func() { _ = os.Unsetenv("TEST_ORIGINS_SPACED") }()

	origins := AllowedOriginsFromEnv("TEST_ORIGINS_SPACED", nil)

	assert.Equal(t, []string{"http://localhost:3000", "https://play.example.com"}, origins)
}

func TestAllowedOriginsFromEnv_Empty(t *testing.T) {
	_ = os.Unsetenv("TEST_ORIGINS_EMPTY")

	defaults := []string{"http://localhost:3000", "http://localhost:8080"}
	origins := AllowedOriginsFromEnv("TEST_ORIGINS_EMPTY", defaults)

	assert.Equal(t, defaults, origins)
}
