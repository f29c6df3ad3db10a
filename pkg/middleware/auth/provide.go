package auth

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Provide builds the middleware from the environment and runs remote key
// refresh for the lifetime of the app.
func Provide(lc fx.Lifecycle, log *zap.Logger) (*Middleware, error) {
	m, err := New(OptionsFromEnv(), log.Named("auth"))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go m.RefreshKeys(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return m, nil
}

var Module = fx.Options(fx.Provide(Provide))
