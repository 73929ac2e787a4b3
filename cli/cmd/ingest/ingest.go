package ingest

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/compozy/arag/cli/cmd"
	"github.com/compozy/arag/cli/helpers"
	"github.com/compozy/arag/engine/app"
	kingest "github.com/compozy/arag/engine/knowledge/ingest"
	"github.com/compozy/arag/pkg/config"
	"github.com/compozy/arag/pkg/logger"
)

const watchDebounce = 500 * time.Millisecond

// NewIngestCommand creates the ingest command
func NewIngestCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "ingest",
		Short: "Build the knowledge base",
		Long: `Fetch, chunk and embed the knowledge sources into the vector store.
Without --url or --path the sources from the configuration are used.`,
		Example: `  arag ingest
  arag ingest --path "docs/**/*.md" --replace
  arag ingest --path "notes/*.md" --watch`,
		Args: cobra.NoArgs,
		RunE: executeIngestCommand,
	}
	c.Flags().StringSlice("url", nil, "Web page to ingest (repeatable)")
	c.Flags().StringSlice("path", nil, "Local file glob to ingest (repeatable)")
	c.Flags().Bool("replace", false, "Replace previously ingested chunks of the same sources")
	c.Flags().Bool("watch", false, "Re-ingest local paths when they change")
	c.Flags().String("root", "", "Directory local paths must stay inside (default: working directory)")
	c.Flags().StringP("format", "f", "text", "Output format (text, json)")
	return c
}

func executeIngestCommand(cobraCmd *cobra.Command, args []string) error {
	return cmd.ExecuteCommand(cobraCmd, cmd.ExecutorOptions{
		RequireEngine: true,
	}, cmd.ModeHandlers{
		JSON: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
			return runIngest(ctx, c, e, writeResultJSON)
		},
		Text: func(ctx context.Context, c *cobra.Command, e *cmd.CommandExecutor, _ []string) error {
			return runIngest(ctx, c, e, writeResultText)
		},
	}, args)
}

type resultWriter func(w io.Writer, res *kingest.Result) error

type request struct {
	sources kingest.Sources
	options kingest.Options
	watch   bool
}

func parseRequest(ctx context.Context, cobraCmd *cobra.Command) (*request, error) {
	urls, err := cobraCmd.Flags().GetStringSlice("url")
	if err != nil {
		return nil, err
	}
	paths, err := cobraCmd.Flags().GetStringSlice("path")
	if err != nil {
		return nil, err
	}
	replace, err := cobraCmd.Flags().GetBool("replace")
	if err != nil {
		return nil, err
	}
	watch, err := cobraCmd.Flags().GetBool("watch")
	if err != nil {
		return nil, err
	}
	root, err := cobraCmd.Flags().GetString("root")
	if err != nil {
		return nil, err
	}
	req := &request{
		sources: kingest.Sources{URLs: urls, Paths: paths},
		options: kingest.Options{Strategy: kingest.StrategyUpsert, Root: root},
		watch:   watch,
	}
	if len(urls) == 0 && len(paths) == 0 {
		req.sources = app.DefaultSources(config.FromContext(ctx))
	}
	if replace {
		req.options.Strategy = kingest.StrategyReplace
	}
	if watch && len(req.sources.Paths) == 0 {
		return nil, helpers.NewCliError("INVALID_INPUT", "--watch requires at least one --path")
	}
	return req, nil
}

func runIngest(ctx context.Context, cobraCmd *cobra.Command, executor *cmd.CommandExecutor, write resultWriter) error {
	req, err := parseRequest(ctx, cobraCmd)
	if err != nil {
		return err
	}
	pipeline, err := executor.Engine().Ingester(req.options)
	if err != nil {
		return err
	}
	out := cobraCmd.OutOrStdout()
	res, err := pipeline.Run(ctx, req.sources)
	if res != nil {
		if werr := write(out, res); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}
	if !req.watch {
		return nil
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.FromContext(ctx).Info("Watching knowledge sources", "paths", req.sources.Paths)
	return pipeline.Watch(ctx, req.sources.Paths, watchDebounce, func(res *kingest.Result, err error) {
		if err != nil {
			logger.FromContext(ctx).Error("Knowledge re-ingestion failed", "error", err)
			return
		}
		if werr := write(out, res); werr != nil {
			logger.FromContext(ctx).Warn("Failed to report ingestion result", "error", werr)
		}
	})
}

type resultJSON struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Persisted int           `json:"persisted"`
	Failures  []failureJSON `json:"failures"`
}

type failureJSON struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

func writeResultJSON(w io.Writer, res *kingest.Result) error {
	out := resultJSON{
		Documents: res.Documents,
		Chunks:    res.Chunks,
		Persisted: res.Persisted,
		Failures:  make([]failureJSON, 0, len(res.Failures)),
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, failureJSON{Source: f.Source, Error: f.Err.Error()})
	}
	return helpers.WriteJSON(w, out)
}

func writeResultText(w io.Writer, res *kingest.Result) error {
	_, err := fmt.Fprintf(w, "%s %d %s, %d %s, %d persisted\n",
		helpers.SuccessStyle.Render("Ingested"),
		res.Documents, helpers.Pluralize(res.Documents, "document", "documents"),
		res.Chunks, helpers.Pluralize(res.Chunks, "chunk", "chunks"),
		res.Persisted,
	)
	if err != nil {
		return err
	}
	for _, f := range res.Failures {
		if _, err := fmt.Fprintf(w, "%s %s: %v\n", helpers.WarningStyle.Render("skipped"), f.Source, f.Err); err != nil {
			return err
		}
	}
	return nil
}
