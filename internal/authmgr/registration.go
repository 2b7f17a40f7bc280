// file: internal/authmgr/registration.go

package authmgr

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"token-manager/config"
	"token-manager/internal/logger"
)

// Client authentication methods and grant types understood by the bundled clients
const (
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"

	GrantTypeClientCredentials = "client_credentials"
)

// Provider types
const (
	ProviderTypeOAuth2     = "oauth2"
	ProviderTypeCustomHTTP = "custom-http"
)

// configRoot is the configuration path prefix used in resolution diagnostics
const configRoot = "oauth2"

// ClientRegistration identifies this application to a provider
type ClientRegistration struct {
	ClientID     string
	ClientSecret string
	ProviderName string
	AuthMethod   string
	GrantType    string
	Scopes       []string
}

// Usable reports whether both client id and secret are present
func (c ClientRegistration) Usable() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// ProviderDetails holds a provider's token endpoint metadata
type ProviderDetails struct {
	Type     string
	TokenURI string
	Audience string

	// custom-http only
	Method        string
	Headers       map[string]string
	Body          string
	TokenPath     string
	ExpiresInPath string
}

// Registration is a validated pairing of one named client registration with its
// provider's endpoint details. It is immutable: accessors hand out copies.
type Registration struct {
	name     string
	client   ClientRegistration
	provider ProviderDetails
}

// Name returns the registration name
func (r *Registration) Name() string {
	return r.name
}

// Client returns a copy of the client registration
func (r *Registration) Client() ClientRegistration {
	c := r.client
	c.Scopes = slices.Clone(r.client.Scopes)
	return c
}

// Provider returns a copy of the provider details
func (r *Registration) Provider() ProviderDetails {
	p := r.provider
	p.Headers = maps.Clone(r.provider.Headers)
	return p
}

// Resolve validates and resolves one registration. An empty name means "the only
// registration"; with more than one configured that is ambiguous. Every failure is
// logged with the offending configuration path and yields (nil, false).
func Resolve(props *config.OAuth2Properties, name string, log *logger.Logger) (*Registration, bool) {
	reg, err := resolve(props, name)
	if err != nil {
		log.Warn("skipping oauth2 registration", "registration", name, "error", err)
		return nil, false
	}
	return reg, true
}

func resolve(props *config.OAuth2Properties, name string) (*Registration, error) {
	if props == nil {
		return nil, &ResolutionError{Registration: name, Path: configRoot, Reason: "no oauth2 properties configured"}
	}

	regPath := configRoot + ".registration"
	if len(props.Registration) == 0 {
		return nil, &ResolutionError{Registration: name, Path: regPath, Reason: "no client registrations configured"}
	}

	if name == "" {
		if len(props.Registration) != 1 {
			return nil, &ResolutionError{
				Path:   regPath,
				Reason: fmt.Sprintf("ambiguous: %d registrations configured and none selected (%s)", len(props.Registration), strings.Join(slices.Sorted(maps.Keys(props.Registration)), ", ")),
			}
		}
		for only := range props.Registration {
			name = only
		}
	}

	raw, ok := props.Registration[name]
	if !ok {
		return nil, &ResolutionError{Registration: name, Path: regPath + "." + name, Reason: "registration not found"}
	}

	entryPath := regPath + "." + name
	if raw.ClientID == "" {
		return nil, &ResolutionError{Registration: name, Path: entryPath + ".clientId", Reason: "client id is missing"}
	}
	if raw.ClientSecret == "" {
		return nil, &ResolutionError{Registration: name, Path: entryPath + ".clientSecret", Reason: "client secret is missing"}
	}

	provPath := configRoot + ".provider"
	if len(props.Provider) == 0 {
		return nil, &ResolutionError{Registration: name, Path: provPath, Reason: "no providers configured"}
	}

	// The provider reference defaults to the registration name
	providerName := raw.Provider
	if providerName == "" {
		providerName = name
	}
	rawProvider, ok := props.Provider[providerName]
	if !ok {
		return nil, &ResolutionError{
			Registration: name,
			Path:         entryPath + ".provider",
			Reason:       fmt.Sprintf("provider %q is not defined under %s", providerName, provPath),
		}
	}

	client := ClientRegistration{
		ClientID:     raw.ClientID,
		ClientSecret: raw.ClientSecret,
		ProviderName: providerName,
		AuthMethod:   raw.ClientAuthenticationMethod,
		GrantType:    raw.AuthorizationGrantType,
		Scopes:       slices.Clone(raw.Scope),
	}
	if client.AuthMethod == "" {
		client.AuthMethod = AuthMethodClientSecretBasic
	}
	if client.GrantType == "" {
		client.GrantType = GrantTypeClientCredentials
	}
	if client.GrantType != GrantTypeClientCredentials {
		return nil, &ResolutionError{
			Registration: name,
			Path:         entryPath + ".authorizationGrantType",
			Reason:       fmt.Sprintf("unsupported grant type %q", client.GrantType),
		}
	}

	provider := ProviderDetails{
		Type:          rawProvider.Type,
		TokenURI:      rawProvider.TokenURI,
		Audience:      rawProvider.Audience,
		Method:        rawProvider.Method,
		Headers:       maps.Clone(rawProvider.Headers),
		Body:          rawProvider.Body,
		TokenPath:     rawProvider.TokenPath,
		ExpiresInPath: rawProvider.ExpiresInPath,
	}
	if provider.Type == "" {
		provider.Type = ProviderTypeOAuth2
	}
	if provider.TokenURI == "" {
		return nil, &ResolutionError{Registration: name, Path: provPath + "." + providerName + ".tokenUri", Reason: "token uri is missing"}
	}

	return &Registration{name: name, client: client, provider: provider}, nil
}
