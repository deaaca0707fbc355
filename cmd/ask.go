package cmd

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/engine"
	"github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/retry"
)

var (
	askNoCache       bool
	askRefreshSchema bool
	askShowSQL       bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a natural-language question with SQL",
	Long: `Ask a question about the connected database. A sufficiently similar
previously answered question is served from the cache; otherwise SQL is
generated, executed, and cached for next time.

Examples:
  askdb ask "how many users signed up last week"
  askdb ask --no-cache "total revenue by month"
  askdb ask --refresh-schema "which tables reference users"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askNoCache, "no-cache", false,
		"Skip the cache lookup and always generate fresh SQL")
	askCmd.Flags().BoolVar(&askRefreshSchema, "refresh-schema", false,
		"Re-extract the schema before answering")
	askCmd.Flags().BoolVar(&askShowSQL, "show-sql", true,
		"Print the SQL statement along with the results")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	question := strings.TrimSpace(args[0])
	if question == "" {
		return errors.New(errors.ErrTypeValidation, "question is empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, cleanup, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr))
	spin.Suffix = " answering..."
	spin.Start()

	answer, err := app.engine.Ask(ctx, question, engine.Options{
		ForceNoCache:  askNoCache,
		RefreshSchema: askRefreshSchema,
	})

	spin.Stop()

	if err != nil {
		if answer != nil && len(answer.Attempts) > 0 {
			printAttempts(cmd, answer.Attempts)
		}

		printSuggestions(cmd, err)

		return err
	}

	if answer.FromCache {
		fmt.Fprintf(cmd.ErrOrStderr(), "(cached, similarity %.3f)\n", answer.CacheSimilarity)
	} else if len(answer.Attempts) > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "(corrected after %d attempts)\n", len(answer.Attempts))
	}

	if askShowSQL {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", answer.SQL)
	}

	printResult(cmd, answer)

	return nil
}

func printResult(cmd *cobra.Command, answer *engine.Answer) {
	out := cmd.OutOrStdout()
	result := answer.Result

	if result == nil || len(result.Columns) == 0 {
		fmt.Fprintln(out, "(no results)")
		return
	}

	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}

	rendered := make([][]string, len(result.Rows))

	for r, row := range result.Rows {
		cells := make([]string, len(result.Columns))

		for i := range result.Columns {
			var cell string
			if i < len(row) {
				cell = formatValue(row[i])
			}

			cells[i] = cell
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}

		rendered[r] = cells
	}

	writeRow := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}

		fmt.Fprintln(out, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	writeRow(result.Columns)

	separators := make([]string, len(result.Columns))
	for i, w := range widths {
		separators[i] = strings.Repeat("-", w)
	}

	writeRow(separators)

	for _, cells := range rendered {
		writeRow(cells)
	}

	fmt.Fprintf(out, "\n%d row(s)", len(result.Rows))

	if result.Truncated {
		fmt.Fprint(out, " (truncated)")
	}

	fmt.Fprintln(out)
}

func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}

	return fmt.Sprintf("%v", v)
}

func printAttempts(cmd *cobra.Command, attempts []retry.Attempt) {
	out := cmd.ErrOrStderr()

	fmt.Fprintln(out, "Attempts:")

	for _, attempt := range attempts {
		if attempt.SQL != "" {
			fmt.Fprintf(out, "  %d: %s\n", attempt.Number, attempt.SQL)
		}

		if attempt.Err != nil {
			fmt.Fprintf(out, "     error: %v\n", errors.RootCause(attempt.Err))
		}
	}
}

func printSuggestions(cmd *cobra.Command, err error) {
	var structured *errors.Error
	if !stderrors.As(err, &structured) || len(structured.Suggestions) == 0 {
		return
	}

	out := cmd.ErrOrStderr()

	fmt.Fprintln(out, "Suggestions:")

	for _, suggestion := range structured.Suggestions {
		fmt.Fprintf(out, "  - %s\n", suggestion)
	}
}
