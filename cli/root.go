package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/arag/cli/cmd/ask"
	configcmd "github.com/compozy/arag/cli/cmd/config"
	"github.com/compozy/arag/cli/cmd/graph"
	"github.com/compozy/arag/cli/cmd/ingest"
	"github.com/compozy/arag/cli/cmd/serve"
	"github.com/compozy/arag/cli/helpers"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
	"github.com/compozy/arag/pkg/version"
)

const (
	defaultConfigFile = "arag.yaml"
	defaultEnvFile    = ".env"
)

// RootCmd builds the arag command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arag",
		Short: "Agentic retrieval augmented question answering",
		Long: `arag answers questions from a local knowledge base, grades the evidence,
falls back to web search when the knowledge base is not enough and verifies
that every answer is grounded before returning it.`,
		Version:           fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.CommitHash, version.BuildDate),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupGlobalConfig,
	}
	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to the YAML configuration file")
	flags.String("env-file", defaultEnvFile, "Path to a .env file with API keys")
	flags.String("log-level", "", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Emit JSON logs")
	flags.Bool("log-source", false, "Include source locations in logs")

	root.AddCommand(
		ask.NewAskCommand(),
		ingest.NewIngestCommand(),
		serve.NewServeCommand(),
		graph.NewGraphCommand(),
		configcmd.NewConfigCommand(),
	)
	return root
}

// setupGlobalConfig loads configuration and the logger into the command context.
func setupGlobalConfig(cobraCmd *cobra.Command, _ []string) error {
	ctx := cobraCmd.Context()
	configFile, err := cobraCmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	envFile, err := cobraCmd.Flags().GetString("env-file")
	if err != nil {
		return err
	}
	svc := config.NewService()
	cfg, err := svc.Load(
		ctx,
		config.NewYAMLProvider(configFile),
		config.NewEnvFileProvider(envFile),
		config.NewCLIProvider(extractCLIFlags(cobraCmd)),
	)
	if err != nil {
		err = fmt.Errorf("failed to load configuration: %w", err)
		helpers.OutputError(err, helpers.DetectMode(cobraCmd))
		return err
	}
	log := logger.SetupLogger(cfg.App.LogLevel, cfg.App.LogJSON, cfg.App.LogSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	ctx = helpers.ContextWithConfigService(ctx, svc)
	cobraCmd.SetContext(ctx)
	return nil
}

// extractCLIFlags maps explicitly set flags to configuration paths.
func extractCLIFlags(cobraCmd *cobra.Command) map[string]any {
	flags := make(map[string]any)
	logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cobraCmd)
	if err != nil {
		return flags
	}
	if cobraCmd.Flags().Changed("log-level") {
		flags["app.log_level"] = logLevel
	}
	if cobraCmd.Flags().Changed("log-json") {
		flags["app.log_json"] = logJSON
	}
	if cobraCmd.Flags().Changed("log-source") {
		flags["app.log_source"] = logSource
	}
	return flags
}
