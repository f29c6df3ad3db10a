package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/joeydtaylor/electrician/pkg/builder"
	"go.uber.org/zap"
)

// forwardRelay publishes frames into an Electrician wire drained by a
// ForwardRelay. Builder types stay inside the constructor's closures.
type forwardRelay struct {
	submit func(context.Context, []byte) error
	stop   context.CancelFunc
	log    *zap.Logger
}

// NewFromEnv returns a Noop publisher when ELECTRICIAN_TARGET is unset and an
// Electrician forward relay otherwise.
func NewFromEnv(log *zap.Logger) (Publisher, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg, log)
}

// New starts a forward relay for cfg.
func New(cfg Config, log *zap.Logger) (Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.Targets) == 0 {
		log.Info("relay disabled; publishes are discarded")
		return Noop{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	blog := builder.NewLogger(builder.LoggerWithDevelopment(false))
	wire := builder.NewWire[[]byte](ctx, builder.WireWithLogger[[]byte](blog))

	perf := builder.NewPerformanceOptions(cfg.Snappy, builder.COMPRESS_SNAPPY)
	sec := builder.NewSecurityOptions(cfg.AESKey != "", builder.ENCRYPTION_AES_GCM)
	tlsCfg := builder.NewTlsClientConfig(cfg.TLS, cfg.TLSCert, cfg.TLSKey, cfg.TLSCA, tls.VersionTLS13, tls.VersionTLS13)

	var start func(context.Context) error
	if cfg.OAuthEnabled() {
		authOpts := builder.NewForwardRelayAuthenticationOptionsOAuth2(nil)
		if cfg.OAuthJWKS != "" {
			authOpts = builder.NewForwardRelayAuthenticationOptionsOAuth2(
				builder.NewForwardRelayOAuth2JWTOptions(cfg.OAuthIssuer, cfg.OAuthJWKS, []string{}, cfg.OAuthScopes, 300),
			)
		}
		tokenHTTP := &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{TLSClientConfig: &tls.Config{
				MinVersion:         tls.VersionTLS13,
				MaxVersion:         tls.VersionTLS13,
				InsecureSkipVerify: cfg.TLSInsecure,
			}},
		}
		ts := builder.NewForwardRelayRefreshingClientCredentialsSource(
			cfg.OAuthIssuer, cfg.OAuthClientID, cfg.OAuthSecret, cfg.OAuthScopes, cfg.OAuthLeeway, tokenHTTP,
		)
		fr := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](blog),
			builder.ForwardRelayWithTarget[[]byte](cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, cfg.AESKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](cfg.StaticHeaders),
			builder.ForwardRelayWithAuthenticationOptions[[]byte](authOpts),
			builder.ForwardRelayWithOAuthBearer[[]byte](ts),
			builder.ForwardRelayWithInput(wire),
		)
		start = fr.Start
	} else {
		fr := builder.NewForwardRelay[[]byte](
			ctx,
			builder.ForwardRelayWithLogger[[]byte](blog),
			builder.ForwardRelayWithTarget[[]byte](cfg.Targets...),
			builder.ForwardRelayWithPerformanceOptions[[]byte](perf),
			builder.ForwardRelayWithSecurityOptions[[]byte](sec, cfg.AESKey),
			builder.ForwardRelayWithTLSConfig[[]byte](tlsCfg),
			builder.ForwardRelayWithStaticHeaders[[]byte](cfg.StaticHeaders),
			builder.ForwardRelayWithInput(wire),
		)
		start = fr.Start
	}

	if err := wire.Start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("relay wire start: %w", err)
	}
	if err := start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("relay start: %w", err)
	}
	log.Info("relay started", zap.Strings("targets", cfg.Targets), zap.Bool("tls", cfg.TLS), zap.Bool("oauth", cfg.OAuthEnabled()))
	return &forwardRelay{
		submit: func(ctx context.Context, b []byte) error { return wire.Submit(ctx, b) },
		stop:   cancel,
		log:    log,
	}, nil
}

func (r *forwardRelay) Publish(ctx context.Context, m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	if err := r.submit(ctx, b); err != nil {
		r.log.Warn("relay publish failed", zap.String("topic", m.Topic), zap.Error(err))
		return fmt.Errorf("relay publish %q: %w", m.Topic, err)
	}
	return nil
}

// Close stops the relay pipeline.
func (r *forwardRelay) Close() error {
	r.stop()
	return nil
}
