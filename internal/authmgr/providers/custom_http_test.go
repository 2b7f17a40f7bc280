// file: internal/authmgr/providers/custom_http_test.go

package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"token-manager/internal/authmgr"
)

func TestExtractString(t *testing.T) {
	tests := []struct {
		name    string
		data    interface{}
		path    string
		want    string
		wantErr bool
	}{
		// Simple paths
		{
			name: "simple string field",
			data: map[string]interface{}{"token": "abc123"},
			path: "token",
			want: "abc123",
		},
		{
			name: "simple number field",
			data: map[string]interface{}{"count": float64(42)},
			path: "count",
			want: "42",
		},
		{
			name: "simple boolean field",
			data: map[string]interface{}{"active": true},
			path: "active",
			want: "true",
		},

		// Nested paths
		{
			name: "nested string field",
			data: map[string]interface{}{
				"data": map[string]interface{}{
					"access_token": "xyz789",
				},
			},
			path: "data.access_token",
			want: "xyz789",
		},
		{
			name: "deeply nested field",
			data: map[string]interface{}{
				"response": map[string]interface{}{
					"auth": map[string]interface{}{
						"credentials": map[string]interface{}{
							"token": "deep_token",
						},
					},
				},
			},
			path: "response.auth.credentials.token",
			want: "deep_token",
		},
		{
			name: "large number",
			data: map[string]interface{}{"id": float64(9999999999)},
			path: "id",
			want: "9999999999",
		},

		// Error cases
		{
			name:    "empty path",
			data:    map[string]interface{}{"token": "abc"},
			path:    "",
			wantErr: true,
		},
		{
			name:    "missing key",
			data:    map[string]interface{}{"token": "abc"},
			path:    "missing",
			wantErr: true,
		},
		{
			name: "traverse into non-map",
			data: map[string]interface{}{
				"data": "string_not_map",
			},
			path:    "data.token",
			wantErr: true,
		},
		{
			name: "final value is array",
			data: map[string]interface{}{
				"tokens": []interface{}{"a", "b", "c"},
			},
			path:    "tokens",
			wantErr: true,
		},
		{
			name:    "nil data",
			data:    nil,
			path:    "token",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractString(tt.data, tt.path)

			if tt.wantErr {
				if err == nil {
					t.Errorf("extractString() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("extractString() unexpected error: %v", err)
				return
			}

			if got != tt.want {
				t.Errorf("extractString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractSeconds(t *testing.T) {
	tests := []struct {
		name    string
		data    interface{}
		path    string
		want    int64
		wantErr bool
	}{
		{"number", map[string]interface{}{"expires_in": float64(300)}, "expires_in", 300, false},
		{"numeric string", map[string]interface{}{"ttl": "120"}, "ttl", 120, false},
		{"nested", map[string]interface{}{"data": map[string]interface{}{"ttl": float64(60)}}, "data.ttl", 60, false},
		{"non numeric string", map[string]interface{}{"ttl": "soon"}, "ttl", 0, true},
		{"boolean", map[string]interface{}{"ttl": true}, "ttl", 0, true},
		{"missing", map[string]interface{}{}, "ttl", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractSeconds(tt.data, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("extractSeconds() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("extractSeconds() unexpected error: %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("extractSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewCustomHTTPClient(t *testing.T) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	client, err := NewCustomHTTPClient(
		authmgr.ClientRegistration{ClientID: "id", ClientSecret: "secret", ProviderName: "legacy"},
		authmgr.ProviderDetails{
			Type:      authmgr.ProviderTypeCustomHTTP,
			TokenURI:  "http://auth.example.com/token",
			Headers:   headers,
			Body:      `{"grant_type": "client_credentials"}`,
			TokenPath: "access_token",
		},
		http.DefaultClient,
	)
	if err != nil {
		t.Fatalf("NewCustomHTTPClient() unexpected error: %v", err)
	}

	if client.authURL != "http://auth.example.com/token" {
		t.Errorf("authURL = %q, want %q", client.authURL, "http://auth.example.com/token")
	}
	if client.method != http.MethodPost {
		t.Errorf("method = %q, want %q", client.method, http.MethodPost)
	}
	if client.tokenPath != "access_token" {
		t.Errorf("tokenPath = %q, want %q", client.tokenPath, "access_token")
	}
	if len(client.headers) != 1 {
		t.Errorf("headers length = %d, want 1", len(client.headers))
	}

	_, err = NewCustomHTTPClient(
		authmgr.ClientRegistration{ProviderName: "legacy"},
		authmgr.ProviderDetails{TokenURI: "http://auth.example.com/token"},
		http.DefaultClient,
	)
	if err == nil {
		t.Error("expected error without tokenPath")
	}
}

func TestCustomHTTPClient_ExpandVars(t *testing.T) {
	t.Setenv("TENANT_ID", "tenant-7")

	client, err := NewCustomHTTPClient(
		authmgr.ClientRegistration{ClientID: "svc", ClientSecret: "pw"},
		authmgr.ProviderDetails{TokenURI: "http://x", TokenPath: "token"},
		http.DefaultClient,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := client.expandVars(`{"user":"${CLIENT_ID}","pass":"${CLIENT_SECRET}","tenant":"${TENANT_ID}","x":"${UNSET_VAR_XYZ}"}`)
	want := `{"user":"svc","pass":"pw","tenant":"tenant-7","x":""}`
	if got != want {
		t.Errorf("expandVars() = %s, want %s", got, want)
	}
}

func TestCustomHTTPClient_FetchToken(t *testing.T) {
	var gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":{"jwt":"custom-token","ttl":"900"}}`)
	}))
	defer srv.Close()

	client, err := NewCustomHTTPClient(
		authmgr.ClientRegistration{ClientID: "svc", ClientSecret: "pw"},
		authmgr.ProviderDetails{
			TokenURI:      srv.URL,
			Method:        "put",
			Headers:       map[string]string{"X-Api-Key": "${CLIENT_SECRET}"},
			Body:          `{"login":"${CLIENT_ID}"}`,
			TokenPath:     "data.jwt",
			ExpiresInPath: "data.ttl",
		},
		srv.Client(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := client.FetchToken(context.Background())
	if err != nil {
		t.Fatalf("FetchToken() unexpected error: %v", err)
	}
	if resp.AccessToken != "custom-token" {
		t.Errorf("AccessToken = %q, want custom-token", resp.AccessToken)
	}
	if resp.ExpiresIn != 900 {
		t.Errorf("ExpiresIn = %d, want 900", resp.ExpiresIn)
	}
	if gotBody != `{"login":"svc"}` {
		t.Errorf("request body = %s", gotBody)
	}
	if gotHeader != "pw" {
		t.Errorf("X-Api-Key header = %q, want pw", gotHeader)
	}
}

func TestCustomHTTPClient_FetchTokenErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non 2xx status", http.StatusUnauthorized, `{"error":"denied"}`},
		{"invalid json", http.StatusOK, `not json`},
		{"missing token", http.StatusOK, `{"other":"x"}`},
		{"empty token", http.StatusOK, `{"token":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client, err := NewCustomHTTPClient(
				authmgr.ClientRegistration{},
				authmgr.ProviderDetails{TokenURI: srv.URL, TokenPath: "token"},
				srv.Client(),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if _, err := client.FetchToken(context.Background()); err == nil {
				t.Error("FetchToken() expected error, got nil")
			}
		})
	}
}
