// file: internal/authmgr/errors.go

package authmgr

import (
	"errors"
	"fmt"
)

// ErrRegistryClosing is returned by ProviderRegistry.Add once Close has begun.
var ErrRegistryClosing = errors.New("authmgr: provider registry is closing")

// ErrNilProvider is returned by ProviderRegistry.Add for a missing provider.
var ErrNilProvider = errors.New("authmgr: provider is nil")

// DuplicateNameError is returned by ProviderRegistry.Add when the name is taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("authmgr: provider %q is already registered", e.Name)
}

// IsDuplicateName returns true if the error is a DuplicateNameError.
func IsDuplicateName(err error) bool {
	var dupErr *DuplicateNameError
	return errors.As(err, &dupErr)
}

// IsRegistryClosing returns true if the error reports an add after close.
func IsRegistryClosing(err error) bool {
	return errors.Is(err, ErrRegistryClosing)
}

// ResolutionError describes why a configured registration could not be resolved.
// Resolution failures are logged and the entry omitted; they never reach callers.
type ResolutionError struct {
	Registration string // registration name, empty when none was requested
	Path         string // configuration path of the missing or invalid value
	Reason       string
}

func (e *ResolutionError) Error() string {
	if e.Registration == "" {
		return fmt.Sprintf("unresolvable registration at %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("unresolvable registration %q at %s: %s", e.Registration, e.Path, e.Reason)
}

// FetchError is a transient failure to obtain a usable token.
// The refresh loop logs it, keeps the previous token and reschedules.
type FetchError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token fetch for %q failed: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("token fetch for %q failed: %s", e.Provider, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetch failure reasons, also used as the metrics label.
const (
	reasonError            = "error"
	reasonEmptyResponse    = "empty_response"
	reasonInvalidLifetime  = "invalid_lifetime"
	reasonEmptyAccessToken = "empty_access_token"
)
