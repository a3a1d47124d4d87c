// Package farm manages sessions across a family of wikis sharing a
// single sign-on domain, and fans work out over them with bounded
// parallelism.
package farm

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/olgasafonova/wikikit/wiki"
	"github.com/olgasafonova/wikikit/wikitext"
)

// Factory builds a client for a wiki domain. Injecting one lets tests
// and alternative farms control how sessions are created.
type Factory func(domain string) (*wiki.Client, error)

// Registry holds one lazily created session per wiki domain. It is an
// explicit object passed to whatever needs it, not package state, and
// is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*wiki.Client
	factory  Factory
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFactory replaces the default session factory.
func WithFactory(f Factory) RegistryOption {
	return func(r *Registry) { r.factory = f }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry. The default factory builds
// anonymous sessions against the standard /w/api.php endpoint; farms
// with credentials or other script paths inject their own.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*wiki.Client),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		r.factory = defaultFactory
	}
	return r
}

func defaultFactory(domain string) (*wiki.Client, error) {
	return wiki.NewClient(&wiki.Config{
		BaseURL:    "https://" + domain + "/w/api.php",
		Timeout:    30 * time.Second,
		UserAgent:  "wikikit/1.0 (https://github.com/olgasafonova/wikikit)",
		MaxRetries: 3,
		MaxLag:     wiki.DefaultMaxLag,
	}), nil
}

// Session returns the session for a domain, creating it on first use.
// The domain may be given as a bare host or any URL on the wiki.
func (r *Registry) Session(domain string) (*wiki.Client, error) {
	normalized, ok := wikitext.ExtractDomain(domain)
	if !ok {
		return nil, fmt.Errorf("not a wiki domain: %q", domain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.sessions[normalized]; ok {
		return client, nil
	}
	client, err := r.factory(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", normalized, err)
	}
	r.logger.Debug("created wiki session", "domain", normalized)
	r.sessions[normalized] = client
	return client, nil
}

// Domains lists the domains with live sessions.
func (r *Registry) Domains() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	domains := make([]string, 0, len(r.sessions))
	for d := range r.sessions {
		domains = append(domains, d)
	}
	return domains
}

// Clear closes every session and empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for domain, client := range r.sessions {
		client.Close()
		delete(r.sessions, domain)
	}
}
