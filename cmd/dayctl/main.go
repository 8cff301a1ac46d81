package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mstanton/daykeeper/cmd/dayctl/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "dayctl",
		Short: "Operations tool for the daykeeper service",
		Long:  "CLI tool for seeding daily plans, inspecting streaks and history, and minting device tokens",
	}

	rootCmd.AddCommand(commands.NewPlanCmd())
	rootCmd.AddCommand(commands.NewStreakCmd())
	rootCmd.AddCommand(commands.NewHistoryCmd())
	rootCmd.AddCommand(commands.NewTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
