package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"adinsights/internal/domain"

	"github.com/spf13/cobra"
)

// NewSyncCommand runs one sync cycle and prints the report.
func NewSyncCommand() *cobra.Command {
	var (
		days       int
		accountIDs []string
		endDate    string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and print the report",
		Example: `  adinsights sync --days 7
  adinsights sync --account 123 --account act_456 --end-date 2024-03-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := domain.SyncRequest{AccountIDs: accountIDs, Days: days}
			if endDate != "" {
				end, err := time.Parse(domain.DateLayout, endDate)
				if err != nil {
					return fmt.Errorf("invalid --end-date: %w", err)
				}
				req.EndDate = end
			}
			if days < 0 {
				return errors.New("--days must not be negative")
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.SyncService.RunSync(cmd.Context(), req)
			if errors.Is(err, domain.ErrNoAccounts) {
				return errors.New("no accounts to sync: set SYNC_ACCOUNT_IDS or pass --account")
			}
			if err != nil {
				return err
			}

			RenderReport(os.Stdout, report)

			if report.Failed > 0 && report.Succeeded == 0 {
				return fmt.Errorf("all %d accounts failed", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "window length in days ending on --end-date (default SYNC_WINDOW_DAYS)")
	cmd.Flags().StringSliceVar(&accountIDs, "account", nil, "account id to sync, repeatable (default every active account)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "last day of the window, YYYY-MM-DD (default today)")

	return cmd
}
