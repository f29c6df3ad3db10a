package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideLogger is the system logger.
func ProvideLogger() *zap.Logger { return NewLog("system.log") }

// ProvideMiddleware is the access-log middleware writing http-access.log.
func ProvideMiddleware() *Middleware { return NewMiddleware(NewLog("http-access.log")) }

var Module = fx.Options(
	fx.Provide(ProvideLogger),
	fx.Provide(ProvideMiddleware),
)
