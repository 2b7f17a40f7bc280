// file: cmd/token-manager/cmd/check_test.go

package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"token-manager/config"
	"token-manager/internal/authmgr"
	"token-manager/internal/logger"
)

func checkConfig() *config.Config {
	cfg := &config.Config{
		OAuth2: config.OAuth2Properties{
			Default: "billing",
			Registration: map[string]config.ClientRegistrationProperties{
				"billing": {Provider: "idp", ClientID: "billing-svc", ClientSecret: "s3cret", Scope: []string{"read"}},
				"legacy":  {Provider: "legacy-idp", ClientID: "legacy-svc", ClientSecret: "hunter2"},
				"broken":  {Provider: "idp", ClientID: "broken-svc"},
			},
			Provider: map[string]config.ProviderProperties{
				"idp": {TokenURI: "https://idp.example.com/token"},
				"legacy-idp": {
					Type:      "custom-http",
					TokenURI:  "https://legacy.example.com/login",
					Method:    "POST",
					Headers:   map[string]string{"X-Api-Key": "key-value"},
					TokenPath: "data.token",
				},
			},
		},
	}
	config.SetDefaults(cfg)
	return cfg
}

func TestWriteReport_Redacted(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeReport(&out, checkConfig(), nil, logger.NewNopLogger()))

	text := out.String()
	assert.NotContains(t, text, "s3cret")
	assert.NotContains(t, text, "hunter2")
	assert.NotContains(t, text, "key-value")

	var report checkReport
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))

	assert.Equal(t, "billing", report.Default)
	assert.Equal(t, []string{"broken"}, report.Skipped)
	require.Len(t, report.Registrations, 2)

	billing := report.Registrations[0]
	assert.Equal(t, "billing", billing.Name)
	assert.Equal(t, "billing-svc", billing.ClientID)
	assert.Equal(t, redacted, billing.ClientSecret)
	assert.Equal(t, []string{"read"}, billing.Scopes)
	assert.Equal(t, "https://idp.example.com/token", billing.Provider.TokenURI)
	assert.Nil(t, billing.Token, "no fetch without a supplier")

	legacy := report.Registrations[1]
	assert.Equal(t, "legacy", legacy.Name)
	assert.Equal(t, "custom-http", legacy.Provider.Type)
	assert.Equal(t, map[string]string{"X-Api-Key": redacted}, legacy.Provider.Headers)
}

type staticClient string

func (c staticClient) FetchToken(context.Context) (*authmgr.TokenResponse, error) {
	return &authmgr.TokenResponse{AccessToken: string(c), ExpiresIn: 600}, nil
}

func TestWriteReport_Fetch(t *testing.T) {
	supplier := func(c authmgr.ClientRegistration, _ authmgr.ProviderDetails) (authmgr.TokenClient, error) {
		if c.ClientID == "legacy-svc" {
			return nil, errors.New("legacy endpoint unreachable")
		}
		return staticClient("very-secret-access-token"), nil
	}

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, checkConfig(), supplier, logger.NewNopLogger()))
	assert.NotContains(t, out.String(), "very-secret-access-token")

	var report checkReport
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Registrations, 2)

	billing := report.Registrations[0].Token
	require.NotNil(t, billing)
	assert.True(t, billing.Valid)
	assert.EqualValues(t, 600, billing.ExpiresIn)
	assert.False(t, billing.Expiry.IsZero())

	legacy := report.Registrations[1].Token
	require.NotNil(t, legacy)
	assert.False(t, legacy.Valid)
}
