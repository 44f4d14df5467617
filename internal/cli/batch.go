package cli

import (
	"fmt"

	"github.com/adresconsulta/eps-api/internal/spreadsheet"
	"github.com/spf13/cobra"
)

var batchJSON bool

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Run every row of a spreadsheet",
	Long: `Reads tipo_identificacion and numero_identificacion from an .xlsx or
.csv file and queries each row in order. A failed row never stops the
rest of the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "output the batch as JSON")
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	rows, err := spreadsheet.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	queries, closeFn, err := openQueries(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	batch, err := queries.RunBatch(ctx, rows)
	if err != nil {
		return fmt.Errorf("batch rejected: %w", err)
	}

	if batchJSON {
		return outputJSON(cmd, batch)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderBatch(batch))
	return nil
}
