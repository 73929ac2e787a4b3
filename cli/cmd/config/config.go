package config

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/compozy/arag/cli/cmd"
	"github.com/compozy/arag/cli/helpers"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
)

const redacted = "[REDACTED]"

// NewConfigCommand creates the config command using the unified command pattern
func NewConfigCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Configuration inspection",
		Long:  `Inspect and validate the effective arag configuration.`,
	}
	c.AddCommand(
		NewConfigShowCommand(),
		NewConfigValidateCommand(),
	)
	return c
}

// NewConfigShowCommand creates the config show subcommand
func NewConfigShowCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration values",
		Long: `Display the effective configuration with secrets redacted.
Supports JSON, YAML, and table output formats.`,
		RunE: executeConfigShowCommand,
	}
	c.Flags().StringP("format", "f", "table", "Output format (json, yaml, table)")
	c.Flags().Bool("sources", false, "Show where each value came from")
	return c
}

func executeConfigShowCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{}, cmd.ModeHandlers{
		JSON: handleConfigShow,
		Text: handleConfigShow,
	}, args)
}

func handleConfigShow(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	logger.FromContext(ctx).Debug("executing config show command")
	format, err := cobraCmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	showSources, err := cobraCmd.Flags().GetBool("sources")
	if err != nil {
		return fmt.Errorf("failed to get sources flag: %w", err)
	}
	var sources map[string]config.SourceType
	if showSources {
		sources = helpers.ConfigServiceFromContext(ctx).Sources()
	}
	return formatConfigOutput(cobraCmd.OutOrStdout(), config.FromContext(ctx), sources, format)
}

// NewConfigValidateCommand creates the config validate subcommand
func NewConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long:  `Load the configuration file, .env file and environment and report validation errors.`,
		RunE:  executeConfigValidateCommand,
	}
}

func executeConfigValidateCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{}, cmd.ModeHandlers{
		JSON: handleConfigValidateJSON,
		Text: handleConfigValidateText,
	}, args)
}

func handleConfigValidateJSON(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	err := helpers.ConfigServiceFromContext(ctx).Validate(config.FromContext(ctx))
	result := map[string]any{"valid": err == nil}
	if err != nil {
		result["error"] = err.Error()
	}
	if werr := helpers.WriteJSON(cobraCmd.OutOrStdout(), result); werr != nil {
		return werr
	}
	return err
}

func handleConfigValidateText(ctx context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	if err := helpers.ConfigServiceFromContext(ctx).Validate(config.FromContext(ctx)); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	_, err := fmt.Fprintln(cobraCmd.OutOrStdout(), helpers.SuccessStyle.Render("✓ Configuration is valid"))
	return err
}

// formatConfigOutput formats and outputs configuration based on requested format
func formatConfigOutput(w io.Writer, cfg *config.Config, sources map[string]config.SourceType, format string) error {
	flat, err := flattenConfig(cfg)
	if err != nil {
		return err
	}
	switch format {
	case string(helpers.OutputFormatJSON):
		return helpers.WriteJSON(w, configOutput(flat, sources))
	case string(helpers.OutputFormatYAML):
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		return encoder.Encode(configOutput(flat, sources))
	case string(helpers.OutputFormatTable):
		return outputTable(w, flat, sources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func configOutput(flat map[string]any, sources map[string]config.SourceType) map[string]any {
	out := map[string]any{"config": flat}
	if len(sources) > 0 {
		out["sources"] = sources
	}
	return out
}

func outputTable(w io.Writer, flat map[string]any, sources map[string]config.SourceType) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	showSources := sources != nil
	if showSources {
		fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
		fmt.Fprintln(tw, "---\t-----\t------")
	} else {
		fmt.Fprintln(tw, "KEY\tVALUE")
		fmt.Fprintln(tw, "---\t-----")
	}
	for _, key := range keys {
		if !showSources {
			fmt.Fprintf(tw, "%s\t%v\n", key, flat[key])
			continue
		}
		source := sources[key]
		if source == "" {
			source = config.SourceDefault
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\n", key, flat[key], source)
	}
	return tw.Flush()
}

// flattenConfig returns dotted keys with secrets redacted and durations in
// their string form.
func flattenConfig(cfg *config.Config) (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to flatten configuration: %w", err)
	}
	sensitive := make(map[string]bool)
	for _, m := range config.GenerateEnvMappings() {
		if m.Sensitive {
			sensitive[m.ConfigPath] = true
		}
	}
	out := make(map[string]any, len(k.Keys()))
	for key, value := range k.All() {
		switch v := value.(type) {
		case config.SensitiveString:
			value = v.String()
		case time.Duration:
			value = v.String()
		}
		if sensitive[key] && fmt.Sprint(value) != "" {
			value = redacted
		}
		out[key] = value
	}
	return out, nil
}
