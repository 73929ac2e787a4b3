package ask

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/compozy/arag/cli/cmd"
	"github.com/compozy/arag/cli/helpers"
	"github.com/compozy/arag/engine/core"
	"github.com/compozy/arag/engine/pipeline"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
)

const (
	routeWebLabel        = "Web search"
	routeKBLabel         = "RAG (knowledge base)"
	generationFailedCode = "GENERATION_FAILED"
)

// NewAskCommand creates the ask command
func NewAskCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question",
		Long: `Route the question to the knowledge base or the web, grade the evidence,
generate an answer and verify it is grounded.`,
		Example: `  arag ask "What are the types of agent memory?"
  arag ask --format json "Who won the last world cup?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: executeAskCommand,
	}
	c.Flags().StringP("format", "f", "text", "Output format (text, json)")
	c.Flags().Bool("debug", false, "Print the full pipeline state after the answer")
	return c
}

func executeAskCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{
		RequireEngine: true,
	}, cmd.ModeHandlers{
		JSON: handleAskJSON,
		Text: handleAskText,
	}, args)
}

func answer(ctx context.Context, executor *cmd.CommandExecutor, args []string) (*pipeline.State, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return nil, helpers.NewCliError("INVALID_INPUT", "question must not be empty")
	}
	if timeout := config.FromContext(ctx).Pipeline.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.FromContext(ctx).Debug("Answering question", "question_length", len(question))
	return executor.Engine().Pipeline.Process(ctx, question)
}

// failureError reports a failed run with its route, web search flag and
// attempt count.
func failureError(state *pipeline.State, err error) error {
	if state == nil || !pipeline.IsGenerationFailure(err) {
		return err
	}
	return helpers.FromCoreError(core.NewError(err, generationFailedCode, state.Audit()))
}

func handleAskJSON(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
	state, err := answer(ctx, executor, args)
	if err != nil {
		if state != nil {
			if werr := helpers.WriteJSON(cobraCmd.OutOrStdout(), state); werr != nil {
				return werr
			}
		}
		return failureError(state, err)
	}
	return helpers.WriteJSON(cobraCmd.OutOrStdout(), state)
}

func handleAskText(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, args []string) error {
	state, err := answer(ctx, executor, args)
	if err != nil {
		return failureError(state, err)
	}
	debug, err := cobraCmd.Flags().GetBool("debug")
	if err != nil {
		return err
	}
	return renderState(cobraCmd.OutOrStdout(), state, debug)
}

// RouteLabel names the evidence source the answer was built from.
func RouteLabel(state *pipeline.State) string {
	if state.WebSearch {
		return routeWebLabel
	}
	return routeKBLabel
}

// sourceList names each document's origin: the file or page for knowledge
// base chunks and the result URLs for web evidence.
func sourceList(state *pipeline.State) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || seen[src] {
			return
		}
		seen[src] = true
		out = append(out, src)
	}
	for _, doc := range state.Documents {
		if !doc.IsWebSourced() {
			add(doc.Meta(pipeline.MetaSource))
			continue
		}
		for _, u := range strings.Split(doc.Meta(pipeline.MetaURLs), ",") {
			add(u)
		}
	}
	return out
}

func renderState(w io.Writer, state *pipeline.State, debug bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", helpers.LabelStyle.Render("Question:"), state.Question)
	b.WriteString(helpers.AnswerStyle.Render(state.Generation))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s %s\n", helpers.LabelStyle.Render("Route:"), RouteLabel(state))
	fmt.Fprintf(&b, "%s %d %s\n", helpers.LabelStyle.Render("Tries:"), state.Tries,
		helpers.Pluralize(state.Tries, "attempt", "attempts"))
	if state.LowConfidence {
		b.WriteString(helpers.WarningStyle.Render("! The answer could not be verified against the evidence"))
		b.WriteString("\n")
	}
	if state.EvidenceGap {
		b.WriteString(helpers.WarningStyle.Render("! Web search was needed but unavailable"))
		b.WriteString("\n")
	}
	if sources := sourceList(state); len(sources) > 0 {
		b.WriteString(helpers.LabelStyle.Render("Sources:"))
		b.WriteString("\n")
		for _, src := range sources {
			fmt.Fprintf(&b, "  - %s\n", src)
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if !debug {
		return nil
	}
	if _, err := io.WriteString(w, "\n"+helpers.MutedStyle.Render("Pipeline state:")+"\n"); err != nil {
		return err
	}
	return helpers.WriteJSON(w, state)
}
