package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mstanton/daykeeper/internal/config"
	"github.com/mstanton/daykeeper/internal/database"
)

// NewStreakCmd creates the streak command.
func NewStreakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Inspect the completion streak",
	}
	cmd.AddCommand(newStreakShowCmd())
	return cmd
}

func newStreakShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current streak record",
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

			streak, err := database.NewStreakRepository(db).Get(context.Background())
			if err != nil {
				return fmt.Errorf("get streak: %w", err)
			}
			if streak == nil {
				fmt.Println("No streak record yet.")
				return nil
			}

			fmt.Println("Streak:")
			fmt.Printf("  Current streak:   %d days\n", streak.CurrentStreak)
			fmt.Printf("  Last completed:   %s\n", valueOr(streak.LastCompletedDate, "never"))
			fmt.Printf("  Skips this week:  %d\n", streak.SkipsThisWeek)
			fmt.Printf("  Accrued tax:      %s\n", time.Duration(streak.AccruedTaxMS)*time.Millisecond)
			if streak.Commitment != nil {
				fmt.Printf("  Commitment:       %q (completed: %v)\n", streak.Commitment.Text, streak.Commitment.Completed)
			}
			return nil
		},
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
