// file: internal/authmgr/providers/provider.go

package providers

import (
	"fmt"
	"net/http"
	"time"

	"token-manager/internal/authmgr"
	"token-manager/internal/logger"
)

// defaultHTTPTimeout bounds a single token endpoint round trip
const defaultHTTPTimeout = 30 * time.Second

// SupplierOption is a functional option for configuring the client supplier
type SupplierOption func(*supplier)

type supplier struct {
	httpClient *http.Client
	logger     *logger.Logger
}

// WithHTTPClient makes every supplied client share hc instead of a private
// client. Closing a token client then leaves hc untouched.
func WithHTTPClient(hc *http.Client) SupplierOption {
	return func(s *supplier) {
		s.httpClient = hc
	}
}

// WithLogger sets the logger used to report supplied clients
func WithLogger(l *logger.Logger) SupplierOption {
	return func(s *supplier) {
		s.logger = l
	}
}

// NewSupplier returns the ClientSupplier that picks a token client by provider type
func NewSupplier(opts ...SupplierOption) authmgr.ClientSupplier {
	s := &supplier{logger: logger.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}

	return func(client authmgr.ClientRegistration, provider authmgr.ProviderDetails) (authmgr.TokenClient, error) {
		// nil lets each client create and own its connection pool
		hc := s.httpClient

		var tc authmgr.TokenClient
		switch provider.Type {
		case authmgr.ProviderTypeOAuth2, "":
			tc = NewOAuth2Client(client, provider, hc)
		case authmgr.ProviderTypeCustomHTTP:
			c, err := NewCustomHTTPClient(client, provider, hc)
			if err != nil {
				return nil, err
			}
			tc = c
		default:
			return nil, fmt.Errorf("unknown provider type: %s", provider.Type)
		}

		s.logger.Debug("token client configured",
			"provider", client.ProviderName,
			"type", provider.Type,
			"tokenUri", provider.TokenURI)
		return tc, nil
	}
}
