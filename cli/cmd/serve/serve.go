package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/compozy/arag/cli/cmd"
	"github.com/compozy/arag/engine/infra/server"
	"github.com/compozy/arag/engine/infra/server/appstate"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
	"github.com/compozy/arag/pkg/version"
)

// NewServeCommand creates the serve command for the HTTP API
func NewServeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server", "start"},
		Short:   "Start the HTTP API",
		Long:    "Serve the question answering API, health checks and metrics until interrupted.",
		Args:    cobra.NoArgs,
		RunE:    executeServeCommand,
	}
	c.Flags().String("host", "", "Host to bind (overrides server.host)")
	c.Flags().Int("port", 0, "Port to bind (overrides server.port)")
	return c
}

func executeServeCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{
		RequireEngine: true,
		Monitoring:    true,
	}, cmd.ModeHandlers{
		JSON: handleServe,
		Text: handleServe,
	}, args)
}

func handleServe(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, _ []string) error {
	cfg := *config.FromContext(ctx)
	if err := applyBindFlags(cobraCmd, &cfg); err != nil {
		return err
	}
	ctx = config.ContextWithConfig(ctx, &cfg)
	gin.SetMode(gin.ReleaseMode)
	engine := executor.Engine()
	state, err := appstate.NewState(engine.Pipeline, version.GetVersion())
	if err != nil {
		return err
	}
	engine.RegisterHealthChecks(state)
	srv, err := server.NewServer(ctx, state,
		server.WithMonitoring(engine.Monitoring),
		server.WithRedis(engine.RedisClient()),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.FromContext(ctx).Info("Starting arag server", "address", srv.Address())
	return srv.Run(ctx)
}

func applyBindFlags(cobraCmd *cobra.Command, cfg *config.Config) error {
	if cobraCmd.Flags().Changed("host") {
		host, err := cobraCmd.Flags().GetString("host")
		if err != nil {
			return err
		}
		cfg.Server.Host = host
	}
	if cobraCmd.Flags().Changed("port") {
		port, err := cobraCmd.Flags().GetInt("port")
		if err != nil {
			return err
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid --port %d", port)
		}
		cfg.Server.Port = port
	}
	return nil
}
