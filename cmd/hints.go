package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/hints"
)

var hintCategory string

var hintsCmd = &cobra.Command{
	Use:   "hints",
	Short: "Manage guidance injected into every generation prompt",
	Long: `Hints are short operator-written notes about the database ("amounts
are stored in cents", "soft-deleted rows have deleted_at set") that are
appended to every generation prompt. Disabled hints are kept but not
sent.`,
}

var hintsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hints",
	Args:  cobra.NoArgs,
	RunE:  runHintsList,
}

var hintsAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a hint",
	Args:  cobra.ExactArgs(1),
	RunE:  runHintsAdd,
}

var hintsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable a hint",
	Args:  cobra.ExactArgs(1),
	RunE:  makeHintToggle(true),
}

var hintsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a hint without removing it",
	Args:  cobra.ExactArgs(1),
	RunE:  makeHintToggle(false),
}

var hintsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a hint",
	Args:  cobra.ExactArgs(1),
	RunE:  runHintsRemove,
}

func init() {
	hintsListCmd.Flags().StringVar(&hintCategory, "category", "", "Filter by category")
	hintsAddCmd.Flags().StringVar(&hintCategory, "category", "", "Hint category")

	hintsCmd.AddCommand(hintsListCmd)
	hintsCmd.AddCommand(hintsAddCmd)
	hintsCmd.AddCommand(hintsEnableCmd)
	hintsCmd.AddCommand(hintsDisableCmd)
	hintsCmd.AddCommand(hintsRemoveCmd)
	rootCmd.AddCommand(hintsCmd)
}

func hintManager(cmd *cobra.Command) (*hints.Manager, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	repo, err := newStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}

	return hints.NewManager(repo), func() { _ = repo.Close() }, nil
}

func runHintsList(cmd *cobra.Command, _ []string) error {
	manager, cleanup, err := hintManager(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	all, err := manager.List(cmd.Context(), hintCategory)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(all) == 0 {
		fmt.Fprintln(out, "No hints")
		return nil
	}

	for _, h := range all {
		state := "enabled"
		if !h.Enabled {
			state = "disabled"
		}

		fmt.Fprintf(out, "%s  [%s, %s]  %s\n", h.ID, h.Category, state, h.Text)
	}

	return nil
}

func runHintsAdd(cmd *cobra.Command, args []string) error {
	manager, cleanup, err := hintManager(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	hint, err := manager.Add(cmd.Context(), hintCategory, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added hint %s\n", hint.ID)

	return nil
}

func makeHintToggle(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		manager, cleanup, err := hintManager(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := manager.SetEnabled(cmd.Context(), args[0], enabled); err != nil {
			return err
		}

		state := "enabled"
		if !enabled {
			state = "disabled"
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Hint %s %s\n", args[0], state)

		return nil
	}
}

func runHintsRemove(cmd *cobra.Command, args []string) error {
	manager, cleanup, err := hintManager(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := manager.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed hint %s\n", args[0])

	return nil
}
