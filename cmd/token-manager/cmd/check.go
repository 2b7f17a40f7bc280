// file: cmd/token-manager/cmd/check.go
package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"token-manager/config"
	"token-manager/internal/authmgr"
	"token-manager/internal/authmgr/providers"
	"token-manager/internal/logger"
)

const redacted = "********"

var checkCmd = &cobra.Command{
	Use:   "check --config <token-manager.yaml>",
	Short: "Resolve the configured registrations and print them",
	Long: `The check command loads the configuration, resolves every oauth2 registration
against its provider, and prints the resolved set as YAML with secrets redacted.
Registrations that fail to resolve are listed under 'skipped' and the reason is logged.
With --fetch a token is obtained for each registration and its expiry is reported;
the token itself is never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		fetch, _ := cmd.Flags().GetBool("fetch")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err := logger.NewLogger(&config.LogConfig{Level: "warn", Encoding: "console", OutputPath: "stderr"})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		var supplier authmgr.ClientSupplier
		if fetch {
			supplier = providers.NewSupplier(providers.WithLogger(log))
		}
		return writeReport(cmd.OutOrStdout(), cfg, supplier, log)
	},
}

func init() {
	addConfigFlag(checkCmd.Flags())
	checkCmd.Flags().Bool("fetch", false, "Fetch one token per registration and report its expiry")
}

type checkReport struct {
	Default       string               `yaml:"default,omitempty"`
	Registrations []registrationReport `yaml:"registrations"`
	Skipped       []string             `yaml:"skipped,omitempty"`
}

type registrationReport struct {
	Name         string         `yaml:"name"`
	ClientID     string         `yaml:"clientId"`
	ClientSecret string         `yaml:"clientSecret"`
	AuthMethod   string         `yaml:"clientAuthenticationMethod"`
	GrantType    string         `yaml:"authorizationGrantType"`
	Scopes       []string       `yaml:"scope,omitempty"`
	Provider     providerReport `yaml:"provider"`
	Token        *tokenReport   `yaml:"token,omitempty"`
}

type providerReport struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	TokenURI string            `yaml:"tokenUri"`
	Audience string            `yaml:"audience,omitempty"`
	Method   string            `yaml:"method,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty"`
}

type tokenReport struct {
	Valid     bool      `yaml:"valid"`
	ExpiresIn int64     `yaml:"expiresIn,omitempty"`
	Expiry    time.Time `yaml:"expiry,omitempty"`
}

// writeReport resolves cfg and writes the YAML report to w. A nil supplier skips fetching.
func writeReport(w io.Writer, cfg *config.Config, supplier authmgr.ClientSupplier, log *logger.Logger) error {
	registry := authmgr.NewRegistry(&cfg.OAuth2, log)

	resolved := registry.Names()
	report := checkReport{Default: cfg.OAuth2.Default}
	for _, name := range slices.Sorted(maps.Keys(cfg.OAuth2.Registration)) {
		if !slices.Contains(resolved, name) {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		reg, _ := registry.Get(name)
		entry := describe(reg)
		if supplier != nil {
			entry.Token = fetchOnce(reg, supplier, cfg.Refresh, log)
		}
		report.Registrations = append(report.Registrations, entry)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func describe(reg *authmgr.Registration) registrationReport {
	client := reg.Client()
	provider := reg.Provider()

	// Header values may carry credentials
	headers := make(map[string]string, len(provider.Headers))
	for k := range provider.Headers {
		headers[k] = redacted
	}

	return registrationReport{
		Name:         reg.Name(),
		ClientID:     client.ClientID,
		ClientSecret: redacted,
		AuthMethod:   client.AuthMethod,
		GrantType:    client.GrantType,
		Scopes:       client.Scopes,
		Provider: providerReport{
			Name:     client.ProviderName,
			Type:     provider.Type,
			TokenURI: provider.TokenURI,
			Audience: provider.Audience,
			Method:   provider.Method,
			Headers:  headers,
		},
	}
}

func fetchOnce(reg *authmgr.Registration, supplier authmgr.ClientSupplier, tuning config.RefreshConfig, log *logger.Logger) *tokenReport {
	// A borrowed scheduler that is never started keeps the provider to its first fetch
	sched, err := authmgr.NewRefreshScheduler(clockwork.NewRealClock(), nil, 0)
	if err != nil {
		log.Error("failed to create scheduler", "error", err)
		return &tokenReport{}
	}
	defer sched.Close()

	p, err := authmgr.NewTokenProvider(authmgr.NewProviderSpec(reg, supplier,
		authmgr.WithTuning(tuning),
		authmgr.WithLogger(log),
		authmgr.WithScheduler(authmgr.BorrowedResource(sched)),
	))
	if err != nil {
		log.Error("failed to build token provider", "registration", reg.Name(), "error", err)
		return &tokenReport{}
	}
	defer p.Close()

	tok := p.GetToken()
	if !tok.Valid() {
		return &tokenReport{}
	}
	return &tokenReport{Valid: true, ExpiresIn: tok.ExpiresIn, Expiry: tok.Expiry}
}
