// file: internal/authmgr/providers/oauth2.go

package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"token-manager/internal/authmgr"
)

// OAuth2Client obtains tokens with the OAuth2 client credentials grant
type OAuth2Client struct {
	config     *clientcredentials.Config
	httpClient *http.Client
	ownsClient bool
}

// NewOAuth2Client creates a client credentials token client. A nil httpClient
// gets a private client that Close releases; a shared one is left alone.
func NewOAuth2Client(client authmgr.ClientRegistration, provider authmgr.ProviderDetails, httpClient *http.Client) *OAuth2Client {
	config := &clientcredentials.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		TokenURL:     provider.TokenURI,
		Scopes:       client.Scopes,
		AuthStyle:    authStyle(client.AuthMethod),
	}
	if provider.Audience != "" {
		config.EndpointParams = url.Values{"audience": {provider.Audience}}
	}

	c := &OAuth2Client{config: config, httpClient: httpClient}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
		c.ownsClient = true
	}
	return c
}

func authStyle(method string) oauth2.AuthStyle {
	switch method {
	case authmgr.AuthMethodClientSecretPost:
		return oauth2.AuthStyleInParams
	case authmgr.AuthMethodClientSecretBasic:
		return oauth2.AuthStyleInHeader
	default:
		return oauth2.AuthStyleAutoDetect
	}
}

// FetchToken performs one client credentials exchange. No refresh token logic:
// every call is a full grant.
func (c *OAuth2Client) FetchToken(ctx context.Context) (*authmgr.TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth2 authentication failed: %w", err)
	}

	return &authmgr.TokenResponse{
		AccessToken: token.AccessToken,
		ExpiresIn:   expiresIn(token),
	}, nil
}

// expiresIn prefers the raw expires_in field and falls back to the library's
// computed expiry. Zero means the issuer declared no lifetime.
func expiresIn(token *oauth2.Token) int64 {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}

	if token.Expiry.IsZero() {
		return 0
	}
	return int64(time.Until(token.Expiry).Round(time.Second) / time.Second)
}

// Close releases idle connections of a private HTTP client
func (c *OAuth2Client) Close() error {
	if c.ownsClient {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
