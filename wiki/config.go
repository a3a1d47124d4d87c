package wiki

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds MediaWiki connection settings for one wiki.
type Config struct {
	// BaseURL is the wiki API endpoint (e.g., https://en.wikipedia.org/w/api.php)
	BaseURL string

	// Username for bot password authentication (optional, for editing)
	Username string

	// Password for bot password authentication (optional, for editing)
	Password string

	// TOTPSecret enables the two-factor login flow for accounts with
	// OATH enabled. Leave empty for plain bot-password login.
	TOTPSecret string

	// Timeout for API requests
	Timeout time.Duration

	// UserAgent identifies the client to the wiki. Wikimedia sites
	// require a descriptive user agent for bot traffic.
	UserAgent string

	// MaxRetries for failed or throttled requests
	MaxRetries int

	// MaxLag is the replica lag threshold (seconds) sent with every
	// request. The server rejects requests while its replicas lag more
	// than this, and the client backs off. Zero disables the parameter.
	MaxLag int

	// Assert enforces a session assertion on every request: "user"
	// fails when the session has been logged out, "bot" additionally
	// requires the bot flag. Empty disables assertions.
	Assert string
}

// DefaultMaxLag is the lag threshold recommended for well-behaved bots.
const DefaultMaxLag = 5

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	baseURL := os.Getenv("MEDIAWIKI_URL")
	if baseURL == "" {
		return nil, errors.New("MEDIAWIKI_URL environment variable is required")
	}

	timeout := 30 * time.Second
	if t := os.Getenv("MEDIAWIKI_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	maxRetries := 3
	if r := os.Getenv("MEDIAWIKI_MAX_RETRIES"); r != "" {
		if n, err := strconv.Atoi(r); err == nil && n >= 0 {
			maxRetries = n
		}
	}

	maxLag := DefaultMaxLag
	if l := os.Getenv("MEDIAWIKI_MAXLAG"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n >= 0 {
			maxLag = n
		}
	}

	userAgent := os.Getenv("MEDIAWIKI_USER_AGENT")
	if userAgent == "" {
		userAgent = "wikikit/1.0 (https://github.com/olgasafonova/wikikit)"
	}

	return &Config{
		BaseURL:    baseURL,
		Username:   os.Getenv("MEDIAWIKI_USERNAME"),
		Password:   os.Getenv("MEDIAWIKI_PASSWORD"),
		TOTPSecret: os.Getenv("MEDIAWIKI_TOTP_SECRET"),
		Timeout:    timeout,
		UserAgent:  userAgent,
		MaxRetries: maxRetries,
		MaxLag:     maxLag,
		Assert:     os.Getenv("MEDIAWIKI_ASSERT"),
	}, nil
}

// HasCredentials returns true if authentication credentials are configured.
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
