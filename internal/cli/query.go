package cli

import (
	"encoding/json"
	"fmt"

	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/spf13/cobra"
)

var (
	queryType   string
	queryNumber string
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a single affiliation query",
	Long: `Runs one query in the foreground. When the CAPTCHA service cannot
solve the challenge, the image is saved next to the results and the
operator is asked to type it.`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryType, "tipo", "t", "CC", "document type (CC, TI, CE, PA, ...)")
	queryCmd.Flags().StringVarP(&queryNumber, "numero", "n", "", "document number")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the job as JSON")
	_ = queryCmd.MarkFlagRequired("numero")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	queries, closeFn, err := openQueries(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	job, err := queries.RunQuery(ctx, queryType, queryNumber)
	if err != nil {
		return fmt.Errorf("query rejected: %w", err)
	}

	if queryJSON {
		if err := outputJSON(cmd, job); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), renderJob(job))
	}

	if job.State == models.StateFailed {
		return fmt.Errorf("query %s failed: %s", job.ID, job.Error)
	}
	return nil
}

func outputJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
