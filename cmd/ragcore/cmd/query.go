package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/calyptra/ragcore/internal/assemble"
	"github.com/calyptra/ragcore/internal/output"
	"github.com/calyptra/ragcore/pkg/retriever"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	limit        int
	format       string
	semanticOnly bool
	user         string
	assembled    bool
	maxTokens    int
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Retrieve indexed chunks for a query",
		Long: `Retrieve the most relevant indexed chunks for a query.

By default both retrieval paths run: BM25 keyword matching and semantic
embedding search, fused with Reciprocal Rank Fusion. With --context the
results are packed into a token-budgeted context block instead of listed
individually.

Examples:
  ragcore query "connection pool sizing"
  ragcore query "error handling" --limit 5 --format json
  ragcore query "deployment steps" --context --max-tokens 2000`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.semanticOnly, "semantic-only", false, "Skip keyword search, use embeddings only")
	cmd.Flags().StringVar(&opts.user, "user", "", "User ID for ownership boosting")
	cmd.Flags().BoolVar(&opts.assembled, "context", false, "Assemble results into a token-budgeted context block")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Token budget for --context (default from config)")

	return cmd
}

func runQuery(cmd *cobra.Command, query string, opts queryOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer setupLogging(cfg)()

	r, _, err := openRetriever(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	// The lexical index lives in memory; rebuild it from the persisted
	// chunks before searching.
	if err := r.Warm(cmd.Context()); err != nil {
		return err
	}

	if opts.assembled {
		// A zero MaxTokens falls through to the configured budget.
		out, err := r.RetrieveContext(cmd.Context(), assemble.Request{
			Query:     query,
			MaxTokens: opts.maxTokens,
			UserID:    opts.user,
			UseHybrid: !opts.semanticOnly,
		})
		if err != nil {
			return err
		}
		return printContext(cmd, out, opts.format)
	}

	results, err := r.Retrieve(cmd.Context(), query, retriever.RetrieveOptions{
		TopK:      opts.limit,
		UserID:    opts.user,
		UseHybrid: !opts.semanticOnly,
	})
	if err != nil {
		return err
	}
	return printResults(cmd, query, results, opts.format)
}

func printResults(cmd *cobra.Command, query string, results []*retriever.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"query":   query,
			"count":   len(results),
			"results": results,
		})
	}

	out := output.New(cmd.OutOrStdout())
	if len(results) == 0 {
		out.Warningf("no results")
		return nil
	}
	for _, res := range results {
		out.Result(res.Rank, res.ChunkID, res.Score)
		if len(res.MatchedTerms) > 0 {
			out.Detail("matched: " + strings.Join(res.MatchedTerms, ", "))
		}
		out.Detail(firstLine(res.Content))
	}
	return nil
}

func printContext(cmd *cobra.Command, ctx *assemble.AssembledContext, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ctx)
	}

	out := output.New(cmd.OutOrStdout())
	if ctx.FormattedContext == "" {
		reason := ctx.Reason
		if reason == "" {
			reason = "no relevant content"
		}
		out.Warningf("empty context: %s", reason)
		return nil
	}
	out.Block(ctx.FormattedContext)
	out.Status("", fmt.Sprintf("%d chunks, %d tokens", len(ctx.Chunks), ctx.TotalTokens))
	return nil
}

// firstLine truncates content to a single display line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxLen = 120
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
