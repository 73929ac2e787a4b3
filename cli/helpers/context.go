package helpers

import (
	"context"

	"github.com/compozy/arag/pkg/config"
)

// ContextWithConfigService keeps the loader around so commands can report
// where each value came from.
func ContextWithConfigService(ctx context.Context, svc config.Service) context.Context {
	return context.WithValue(ctx, ConfigServiceKey, svc)
}

// ConfigServiceFromContext returns the loader stored by the root command, or
// a fresh one.
func ConfigServiceFromContext(ctx context.Context) config.Service {
	if svc, ok := ctx.Value(ConfigServiceKey).(config.Service); ok && svc != nil {
		return svc
	}
	return config.NewService()
}
