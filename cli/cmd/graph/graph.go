package graph

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/compozy/arag/cli/cmd"
	"github.com/compozy/arag/cli/helpers"
	"github.com/compozy/arag/engine/pipeline"
)

// NewGraphCommand creates the graph command
func NewGraphCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "graph",
		Short: "Print the pipeline state machine",
		Long:  "Render the question answering state machine as a Mermaid or Graphviz diagram.",
		Example: `  arag graph > pipeline.mmd
  arag graph --diagram graphviz | dot -Tpng > pipeline.png`,
		Args: cobra.NoArgs,
		RunE: executeGraphCommand,
	}
	c.Flags().String("diagram", string(pipeline.GraphMermaid), "Diagram flavour (mermaid, mermaid-flow, graphviz)")
	c.Flags().StringP("format", "f", "text", "Output format (text, json)")
	return c
}

func executeGraphCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{}, cmd.ModeHandlers{
		JSON: handleGraphJSON,
		Text: handleGraphText,
	}, args)
}

func render(cobraCmd *cobra.Command) (pipeline.GraphFormat, string, error) {
	diagram, err := cobraCmd.Flags().GetString("diagram")
	if err != nil {
		return "", "", err
	}
	format := pipeline.GraphFormat(diagram)
	out, err := pipeline.Graph(format)
	if err != nil {
		return "", "", helpers.NewCliError("INVALID_INPUT", err.Error())
	}
	return format, out, nil
}

func handleGraphText(_ context.Context, cobraCmd *cobra.Command, _ *cmd.CommandExecutor, _ []string) error {
	_, out, err := render(cobraCmd)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cobraCmd.OutOrStdout(), out)
	return err
}

// handleGraphJSON only wraps the diagram when JSON was asked for; piping the
// command into a file keeps the raw diagram.
func handleGraphJSON(ctx context.Context, cobraCmd *cobra.Command, e *cmd.CommandExecutor, args []string) error {
	if !cobraCmd.Flags().Changed("format") {
		return handleGraphText(ctx, cobraCmd, e, args)
	}
	format, out, err := render(cobraCmd)
	if err != nil {
		return err
	}
	return helpers.WriteJSON(cobraCmd.OutOrStdout(), map[string]string{
		"diagram": string(format),
		"graph":   out,
	})
}
