package cli

import (
	"fmt"
	"net/url"
	"os"

	"github.com/mcoot/racecoord/internal/protocol"
)

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	Output     string
	Verbose    bool
	AdminToken string
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  getEnvOrDefault("RACECTL_SERVER", "http://localhost:8080"),
		Output:     "text",
		Verbose:    false,
		AdminToken: os.Getenv("RACECTL_ADMIN_TOKEN"),
	}
}

// WebsocketURL maps the server URL onto the websocket endpoint
func (c *Config) WebsocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = protocol.Path
	u.RawQuery = ""
	return u.String(), nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
