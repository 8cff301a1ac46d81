package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mstanton/daykeeper/internal/config"
	"github.com/mstanton/daykeeper/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect completed-goal history",
	}
	cmd.AddCommand(newHistoryListCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent history records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer func() {
				_ = db.Close()
			}()

			records, err := database.NewHistoryRepository(db).List(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}
			if len(records) == 0 {
				fmt.Println("No history records.")
				return nil
			}
			for _, rec := range records {
				pending := ""
				if rec.SummaryPending {
					pending = " (summary pending)"
				}
				fmt.Printf("%s  [%s]  %s%s\n",
					rec.CompletedAt.Format("2006-01-02 15:04"),
					rec.Kind,
					rec.Summary,
					pending,
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to list")
	return cmd
}
