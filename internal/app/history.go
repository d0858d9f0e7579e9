package app

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/output"
	"github.com/drhuang0922/ngic/internal/store"
)

var (
	historyLimit int
	historyRun   string

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent conversions",
		Long: `Display the most recent conversions recorded in the history database,
newest first. Use --run to show every conversion of a single invocation.`,
		Example: `  # Last 20 conversions
  ngic history

  # Last 100 conversions
  ngic history --limit 100

  # One batch run
  ngic history --run 3f2b9c1e-0d4a-4f7e-9a57-2c0d1f7b8e61`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of conversions to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show conversions of a single run ID")
}

func newRunID() string {
	return uuid.NewString()
}

// openStore opens the history database for reading.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, err
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("invalid limit: %d (must not be negative)", historyLimit)
	}
	out := cmd.OutOrStdout()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var conversions []*store.Conversion
	if historyRun != "" {
		var run *store.Run
		run, err = st.GetRun(historyRun)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run %s: %s to %s, quality %d, started %s\n\n",
			run.ID, run.Mode, run.TargetFormat, run.Quality, output.FormatRelativeTime(run.StartedAt))
		conversions, err = st.ListRunConversions(run.ID)
	} else {
		conversions, err = st.ListConversions(historyLimit)
	}
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprint(out, output.RenderConversionTable(nil))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprint(out, output.RenderConversionTable(conversions))
	return nil
}
