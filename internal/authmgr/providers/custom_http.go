// file: internal/authmgr/providers/custom_http.go

package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"token-manager/internal/authmgr"
)

// CustomHTTPClient obtains tokens from a non-standard HTTP endpoint and extracts
// the token and its lifetime from the JSON response by dot path.
type CustomHTTPClient struct {
	authURL       string
	method        string
	headers       map[string]string
	bodyTemplate  string // Body with ${VAR} placeholders
	tokenPath     string // JSON path to extract token (e.g., "data.token")
	expiresInPath string // JSON path to the lifetime in seconds, optional
	vars          map[string]string
	httpClient    *http.Client
	ownsClient    bool
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

// NewCustomHTTPClient creates a custom HTTP token client. ${CLIENT_ID} and
// ${CLIENT_SECRET} in the body and headers expand to the registration's
// credentials; other ${VAR} placeholders expand from the environment. A nil
// httpClient gets a private client that Close releases.
func NewCustomHTTPClient(client authmgr.ClientRegistration, provider authmgr.ProviderDetails, httpClient *http.Client) (*CustomHTTPClient, error) {
	if provider.TokenPath == "" {
		return nil, fmt.Errorf("custom-http provider %q: tokenPath is required", client.ProviderName)
	}

	method := provider.Method
	if method == "" {
		method = http.MethodPost
	}

	c := &CustomHTTPClient{
		authURL:       provider.TokenURI,
		method:        strings.ToUpper(method),
		headers:       provider.Headers,
		bodyTemplate:  provider.Body,
		tokenPath:     provider.TokenPath,
		expiresInPath: provider.ExpiresInPath,
		vars: map[string]string{
			"CLIENT_ID":     client.ClientID,
			"CLIENT_SECRET": client.ClientSecret,
		},
		httpClient: httpClient,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
		c.ownsClient = true
	}
	return c, nil
}

// FetchToken performs HTTP authentication and extracts the token
func (c *CustomHTTPClient) FetchToken(ctx context.Context) (*authmgr.TokenResponse, error) {
	body := c.expandVars(c.bodyTemplate)

	req, err := http.NewRequestWithContext(ctx, c.method, c.authURL, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, c.expandVars(value))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	token, err := extractString(result, c.tokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to extract token at path '%s': %w", c.tokenPath, err)
	}
	if token == "" {
		return nil, fmt.Errorf("extracted token is empty")
	}

	// No lifetime path leaves the lifetime to the default-expiration policy
	var lifetime int64
	if c.expiresInPath != "" {
		lifetime, err = extractSeconds(result, c.expiresInPath)
		if err != nil {
			return nil, fmt.Errorf("failed to extract lifetime at path '%s': %w", c.expiresInPath, err)
		}
	}

	return &authmgr.TokenResponse{AccessToken: token, ExpiresIn: lifetime}, nil
}

// Close releases idle connections of a private HTTP client
func (c *CustomHTTPClient) Close() error {
	if c.ownsClient {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

// expandVars replaces ${VAR} with client credentials or environment variable values
func (c *CustomHTTPClient) expandVars(template string) string {
	return envVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		varName := match[2 : len(match)-1]
		if v, ok := c.vars[varName]; ok {
			return v
		}
		return os.Getenv(varName)
	})
}

// extractJSONPath walks parsed JSON using dot notation
// Supports simple paths like "token" or "data.access_token"
func extractJSONPath(data interface{}, path string) (interface{}, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	current := data
	for i, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			val, exists := v[part]
			if !exists {
				return nil, fmt.Errorf("key '%s' not found at path segment %d", part, i)
			}
			current = val
		default:
			return nil, fmt.Errorf("cannot traverse into %T at path segment %d", current, i)
		}
	}
	return current, nil
}

// extractString resolves path and renders scalar values as strings
func extractString(data interface{}, path string) (string, error) {
	current, err := extractJSONPath(data, path)
	if err != nil {
		return "", err
	}

	switch v := current.(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	default:
		return "", fmt.Errorf("final value is not a string, got %T", current)
	}
}

// extractSeconds resolves path to a whole number of seconds
func extractSeconds(data interface{}, path string) (int64, error) {
	current, err := extractJSONPath(data, path)
	if err != nil {
		return 0, err
	}

	switch v := current.(type) {
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("lifetime %q is not an integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("lifetime is not a number, got %T", current)
	}
}
