package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/arag/cli/helpers"
	"github.com/compozy/arag/engine/app"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
)

// CommandExecutor handles common setup and execution patterns for CLI
// commands: mode detection, engine construction and error rendering.
type CommandExecutor struct {
	mode   helpers.Mode
	engine *app.App
}

// HandlerFunc defines the signature for command handlers.
type HandlerFunc func(ctx context.Context, cmd *cobra.Command, executor *CommandExecutor, args []string) error

// ModeHandlers contains handlers for different execution modes.
type ModeHandlers struct {
	JSON HandlerFunc
	Text HandlerFunc
}

// ExecutorOptions allows customization of the command executor
type ExecutorOptions struct {
	// RequireEngine builds the question answering engine before the handler runs.
	RequireEngine bool
	// Monitoring also builds the metrics exporter.
	Monitoring bool
}

// NewCommandExecutor creates a new command executor with all necessary setup.
func NewCommandExecutor(cmd *cobra.Command, opts ExecutorOptions) (*CommandExecutor, error) {
	ctx := cmd.Context()
	mode := helpers.DetectMode(cmd)
	logger.FromContext(ctx).Debug("detected execution mode", "mode", mode)
	executor := &CommandExecutor{mode: mode}
	if opts.RequireEngine {
		var appOpts []app.Option
		if opts.Monitoring {
			appOpts = append(appOpts, app.WithMonitoring())
		}
		engine, err := app.New(ctx, config.FromContext(ctx), appOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize engine: %w", err)
		}
		executor.engine = engine
	}
	return executor, nil
}

// Execute runs the appropriate handler based on the detected mode.
func (e *CommandExecutor) Execute(ctx context.Context, cmd *cobra.Command, handlers ModeHandlers, args []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	switch e.mode {
	case helpers.ModeJSON:
		if handlers.JSON == nil {
			return fmt.Errorf("JSON mode handler not implemented")
		}
		return handlers.JSON(ctx, cmd, e, args)
	case helpers.ModeText:
		if handlers.Text == nil {
			return fmt.Errorf("text mode handler not implemented")
		}
		return handlers.Text(ctx, cmd, e, args)
	default:
		return fmt.Errorf("unsupported mode: %s", e.mode)
	}
}

// Engine returns the engine built for RequireEngine commands.
func (e *CommandExecutor) Engine() *app.App {
	return e.engine
}

// GetMode returns the detected execution mode.
func (e *CommandExecutor) GetMode() helpers.Mode {
	return e.mode
}

// Close releases the engine.
func (e *CommandExecutor) Close(ctx context.Context) {
	if e.engine != nil {
		e.engine.Close(ctx)
	}
}

// ExecuteCommand is a convenience function that combines executor creation and execution.
func ExecuteCommand(cmd *cobra.Command, opts ExecutorOptions, handlers ModeHandlers, args []string) error {
	executor, err := NewCommandExecutor(cmd, opts)
	if err != nil {
		return HandleCommonErrors(err, helpers.DetectMode(cmd))
	}
	defer executor.Close(cmd.Context())
	return HandleCommonErrors(executor.Execute(cmd.Context(), cmd, handlers, args), executor.GetMode())
}

// HandleCommonErrors prints err in the output mode and returns it so cobra
// sets a failing exit code.
func HandleCommonErrors(err error, mode helpers.Mode) error {
	if err == nil {
		return nil
	}
	cliErr := categorizeError(err)
	if cliErr != nil {
		helpers.OutputError(cliErr, mode)
		return cliErr
	}
	helpers.OutputError(err, mode)
	return err
}

// categorizeError converts errors to structured CLI errors
func categorizeError(err error) *helpers.CliError {
	switch {
	case errors.Is(err, context.Canceled):
		return helpers.NewCliError("OPERATION_CANCELED", "Operation was canceled by user")
	case helpers.IsTimeoutError(err):
		return helpers.NewCliError("OPERATION_TIMEOUT", "Operation timed out", err.Error())
	case helpers.IsNetworkError(err):
		return helpers.NewCliError("NETWORK_ERROR", "Network connection failed", err.Error())
	default:
		return nil
	}
}
