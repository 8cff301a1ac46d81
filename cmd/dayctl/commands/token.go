package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mstanton/daykeeper/internal/config"
	"github.com/mstanton/daykeeper/internal/middleware"
)

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage device tokens",
	}
	cmd.AddCommand(newTokenMintCmd())
	return cmd
}

func newTokenMintCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a device token signed with AUTH_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.AuthSecret == "" {
				return fmt.Errorf("AUTH_SECRET is not set")
			}
			token, err := middleware.MintToken([]byte(cfg.AuthSecret), ttl)
			if err != nil {
				return fmt.Errorf("mint token: %w", err)
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 90*24*time.Hour, "Token lifetime")
	return cmd
}
