// file: internal/authmgr/token.go

package authmgr

import (
	"context"
	"time"
)

// Token is a cached bearer credential. Its Expiry is computed by the provider from
// the fetch time and the issuer-declared lifetime, never taken from the issuer.
type Token struct {
	AccessToken string
	ExpiresIn   int64 // issuer-declared lifetime in seconds
	FetchedAt   time.Time
	Expiry      time.Time
}

// InvalidToken is returned when no unexpired token is available
var InvalidToken = Token{}

// Valid reports whether the token carries a credential.
// GetToken only ever returns unexpired tokens or InvalidToken.
func (t Token) Valid() bool {
	return t.AccessToken != ""
}

// TokenResponse is what an external client returns from a single fetch
type TokenResponse struct {
	AccessToken string
	ExpiresIn   int64 // seconds; 0 when the issuer did not say
}

// TokenClient performs the network call that obtains a token.
// Implementations may also implement io.Closer.
type TokenClient interface {
	FetchToken(ctx context.Context) (*TokenResponse, error)
}

// ClientSupplier turns a registration into an external token client.
// A nil client or an error disables the provider permanently.
type ClientSupplier func(client ClientRegistration, provider ProviderDetails) (TokenClient, error)

// TokenListener is notified after every successful refresh
type TokenListener interface {
	TokenRefreshed(ctx context.Context, provider string, token Token) error
}
