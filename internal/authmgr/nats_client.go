// file: internal/authmgr/nats_client.go

package authmgr

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"

	"token-manager/config"
	"token-manager/internal/logger"
)

// Timeout and retry constants for NATS client operations
const (
	// natsKVOperationTimeout is the maximum time for KV store operations
	natsKVOperationTimeout = 10 * time.Second

	// natsReconnectWait is the delay between NATS reconnection attempts
	natsReconnectWait = 50 * time.Millisecond
)

// NATSClient publishes refreshed tokens to a KV bucket so other processes can
// read the current bearer token. Tokens are never read back.
type NATSClient struct {
	conn      *nats.Conn
	kv        jetstream.KeyValue
	keyPrefix string
	logger    *logger.Logger
}

var _ TokenListener = (*NATSClient)(nil)

// NewNATSClient creates a NATS client and opens KV bucket
func NewNATSClient(cfg *config.NATSConfig, storageConfig *config.StorageConfig, log *logger.Logger) (*NATSClient, error) {
	log.Info("connecting to NATS", "urls", cfg.URLs)

	opts, err := buildNATSOptions(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build NATS options: %w", err)
	}

	nc, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("NATS connection established", "connectedURL", nc.ConnectedUrl())

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream: %w", err)
	}

	// Open KV bucket (must exist - fail fast if not)
	ctx, cancel := context.WithTimeout(context.Background(), natsKVOperationTimeout)
	defer cancel()

	kv, err := js.KeyValue(ctx, storageConfig.Bucket)
	if err != nil {
		nc.Close()
		if err == jetstream.ErrBucketNotFound {
			return nil, fmt.Errorf("KV bucket '%s' not found. Create it with: nats kv add %s",
				storageConfig.Bucket, storageConfig.Bucket)
		}
		return nil, fmt.Errorf("failed to open KV bucket '%s': %w", storageConfig.Bucket, err)
	}

	log.Info("KV bucket opened successfully", "bucket", storageConfig.Bucket)

	return &NATSClient{
		conn:      nc,
		kv:        kv,
		keyPrefix: storageConfig.KeyPrefix,
		logger:    log,
	}, nil
}

// TokenRefreshed writes the access token under the provider's key
func (c *NATSClient) TokenRefreshed(ctx context.Context, provider string, token Token) error {
	ctx, cancel := context.WithTimeout(ctx, natsKVOperationTimeout)
	defer cancel()

	key := c.keyPrefix + provider
	c.logger.Debug("storing token in KV", "key", key, "expiry", token.Expiry)

	if _, err := c.kv.Put(ctx, key, []byte(token.AccessToken)); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Close gracefully closes the NATS connection
func (c *NATSClient) Close() error {
	c.logger.Info("closing NATS connection")

	if err := c.conn.Drain(); err != nil {
		return fmt.Errorf("failed to drain connection: %w", err)
	}

	c.logger.Info("NATS connection closed")
	return nil
}

// buildNATSOptions creates NATS connection options with auth and TLS
func buildNATSOptions(cfg *config.NATSConfig, log *logger.Logger) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("NATS connection closed", "error", nc.LastError())
		}),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
	}

	// Authentication (choose one method)
	switch {
	case cfg.CredsFile != "":
		log.Info("using NATS creds file authentication", "credsFile", cfg.CredsFile)
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	case cfg.NKeySeed != "":
		opt, err := nkeyOption(cfg.NKeySeed)
		if err != nil {
			return nil, err
		}
		log.Info("using NATS NKey authentication")
		opts = append(opts, opt)
	case cfg.Token != "":
		log.Info("using NATS token authentication")
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.Username != "":
		log.Info("using NATS username/password authentication", "username", cfg.Username)
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	if cfg.TLS.Enable {
		log.Info("enabling TLS", "insecure", cfg.TLS.Insecure)

		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.TLS.Insecure,
		}

		if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load TLS cert/key: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
			log.Info("loaded TLS client certificate", "certFile", cfg.TLS.CertFile)
		}

		if cfg.TLS.CAFile != "" {
			opts = append(opts, nats.RootCAs(cfg.TLS.CAFile))
			log.Info("loaded TLS CA certificate", "caFile", cfg.TLS.CAFile)
		}

		opts = append(opts, nats.Secure(tlsConfig))
	}

	return opts, nil
}

// nkeyOption derives the public key from a user seed and signs server nonces with it
func nkeyOption(seed string) (nats.Option, error) {
	kp, err := nkeys.FromSeed([]byte(seed))
	if err != nil {
		return nil, fmt.Errorf("invalid NATS nkey seed: %w", err)
	}
	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive NATS nkey public key: %w", err)
	}
	return nats.Nkey(pub, kp.Sign), nil
}
