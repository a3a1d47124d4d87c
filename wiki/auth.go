package wiki

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/pquerna/otp/totp"
)

const tokenLifetime = 60 * time.Minute

// EnsureLoggedIn logs the session in if credentials are configured and
// the session is not already valid. Wikis that require authentication
// for reads call this before every read.
func (c *Client) EnsureLoggedIn(ctx context.Context) error {
	c.mu.RLock()
	loggedIn := c.loggedIn.Load() && time.Now().Before(c.tokenExpiry)
	c.mu.RUnlock()

	if loggedIn || !c.config.HasCredentials() {
		return nil
	}
	return c.Login(ctx)
}

// Login authenticates with the wiki using the configured bot password,
// going through the two-factor flow when a TOTP secret is configured.
// After a successful login the session's rights and query limits are
// refreshed from the server.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn.Load() && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	if !c.config.HasCredentials() {
		return &AuthenticationError{
			Operation: "login",
			Reason:    "no credentials configured (set MEDIAWIKI_USERNAME and MEDIAWIKI_PASSWORD)",
		}
	}

	// A cookie jar left over from a previous bot-password session makes
	// the server reject a second login; check before trying.
	if c.checkExistingSession(ctx) {
		c.loggedIn.Store(true)
		c.tokenExpiry = time.Now().Add(tokenLifetime)
		c.logger.Info("using existing session")
		return c.refreshSessionInfo(ctx)
	}

	var err error
	if c.config.TOTPSecret != "" {
		err = c.clientLogin(ctx)
	} else {
		err = c.botLogin(ctx)
	}
	if err != nil {
		return err
	}

	c.loggedIn.Store(true)
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	c.logger.Info("logged in", "username", c.config.Username)

	return c.refreshSessionInfo(ctx)
}

// botLogin performs action=login with a bot password.
func (c *Client) botLogin(ctx context.Context) error {
	loginToken, err := c.fetchToken(ctx, "login")
	if err != nil {
		return &AuthenticationError{Operation: "login", Reason: err.Error()}
	}

	params := url.Values{}
	params.Set("action", "login")
	params.Set("lgname", c.config.Username)
	params.Set("lgpassword", c.config.Password)
	params.Set("lgtoken", loginToken)

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return &AuthenticationError{Operation: "login", Reason: err.Error()}
	}

	login, ok := resp["login"].(map[string]any)
	if !ok {
		return &AuthenticationError{Operation: "login", Reason: "unexpected login response"}
	}

	if result := getString(login["result"]); result != "Success" {
		reason := getString(login["reason"])
		if reason == "" {
			reason = result
		}
		return &AuthenticationError{Operation: "login", Reason: reason}
	}
	return nil
}

// clientLogin performs the interactive action=clientlogin flow with a
// TOTP second factor. The first step returns a UI request for the OATH
// token; the second submits a code generated from the shared secret.
func (c *Client) clientLogin(ctx context.Context) error {
	loginToken, err := c.fetchToken(ctx, "login")
	if err != nil {
		return &AuthenticationError{Operation: "clientlogin", Reason: err.Error()}
	}

	params := url.Values{}
	params.Set("action", "clientlogin")
	params.Set("username", c.config.Username)
	params.Set("password", c.config.Password)
	params.Set("logintoken", loginToken)
	params.Set("loginreturnurl", c.config.BaseURL)

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return &AuthenticationError{Operation: "clientlogin", Reason: err.Error()}
	}

	status, login := clientLoginStatus(resp)
	if status == "PASS" {
		return nil
	}
	if status != "UI" {
		return &AuthenticationError{Operation: "clientlogin", Reason: clientLoginMessage(login, status)}
	}

	// Server wants the second factor.
	code, err := totp.GenerateCode(c.config.TOTPSecret, time.Now())
	if err != nil {
		return &AuthenticationError{Operation: "clientlogin", Reason: fmt.Sprintf("TOTP code generation failed: %v", err)}
	}

	params = url.Values{}
	params.Set("action", "clientlogin")
	params.Set("logintoken", loginToken)
	params.Set("logincontinue", "1")
	params.Set("OATHToken", code)

	resp, err = c.apiRequest(ctx, params)
	if err != nil {
		return &AuthenticationError{Operation: "clientlogin", Reason: err.Error()}
	}

	status, login = clientLoginStatus(resp)
	if status != "PASS" {
		return &AuthenticationError{Operation: "clientlogin", Reason: clientLoginMessage(login, status)}
	}
	return nil
}

func clientLoginStatus(resp map[string]any) (string, map[string]any) {
	login, ok := resp["clientlogin"].(map[string]any)
	if !ok {
		return "", nil
	}
	return getString(login["status"]), login
}

func clientLoginMessage(login map[string]any, status string) string {
	if login != nil {
		if msg := getString(login["message"]); msg != "" {
			return msg
		}
	}
	if status == "" {
		return "unexpected clientlogin response"
	}
	return status
}

// Logout invalidates the server session and clears local state.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn.Load() {
		token := c.csrfToken
		if token != "" {
			params := url.Values{}
			params.Set("action", "logout")
			params.Set("token", token)
			if _, err := c.apiRequest(ctx, params); err != nil {
				c.logger.Warn("logout request failed", "error", err)
			}
		}
	}

	jar, _ := cookiejar.New(nil)
	c.httpClient.Jar = jar
	c.loggedIn.Store(false)
	c.csrfToken = ""
	c.tokenExpiry = time.Time{}
	c.rights = nil
	c.highLimits = false
	return nil
}

// checkExistingSession verifies whether the cookie jar already holds a
// valid session. Callers hold c.mu.
func (c *Client) checkExistingSession(ctx context.Context) bool {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return false
	}

	query, ok := resp["query"].(map[string]any)
	if !ok {
		return false
	}
	userinfo, ok := query["userinfo"].(map[string]any)
	if !ok {
		return false
	}

	// Anonymous sessions report user ID 0.
	if getInt(userinfo["id"]) == 0 {
		return false
	}

	c.logger.Debug("found existing session", "user", getString(userinfo["name"]))
	return true
}

// refreshSessionInfo loads the logged-in user's rights and derives the
// session's query limits. Callers hold c.mu.
func (c *Client) refreshSessionInfo(ctx context.Context) error {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "userinfo")
	params.Set("uiprop", "rights|groups")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to fetch user rights: %w", err)
	}

	query, ok := resp["query"].(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected userinfo response")
	}
	userinfo, ok := query["userinfo"].(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected userinfo response")
	}

	rights := make(map[string]bool)
	if list, ok := userinfo["rights"].([]any); ok {
		for _, r := range list {
			rights[getString(r)] = true
		}
	}
	c.rights = rights
	c.highLimits = rights["apihighlimits"]
	return nil
}

// fetchToken fetches a token of the given type (login, csrf, ...).
func (c *Client) fetchToken(ctx context.Context, kind string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", kind)

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to get %s token: %w", kind, err)
	}

	query, ok := resp["query"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected token response")
	}
	tokens, ok := query["tokens"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("no tokens in response")
	}
	token := getString(tokens[kind+"token"])
	if token == "" {
		return "", fmt.Errorf("no %s token in response", kind)
	}
	return token, nil
}

// getCSRFToken returns a CSRF token for write operations, logging in
// and refreshing the cached token as needed.
func (c *Client) getCSRFToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.csrfToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.csrfToken
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	if err := c.Login(ctx); err != nil {
		return "", err
	}

	token, err := c.fetchToken(ctx, "csrf")
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.csrfToken = token
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	c.mu.Unlock()

	return token, nil
}
