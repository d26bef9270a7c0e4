// AngelaMos | 2026
// ping.go

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/user-admin/internal/config"
	"github.com/carterperez-dev/templates/user-admin/internal/user"
)

var pingTimeout time.Duration

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Checks that the remote user API answers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		api, err := user.NewAPIClient(cfg.API.BaseURL, &http.Client{}, nil)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
		defer cancel()

		start := time.Now()
		if err := api.Ping(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", cfg.API.BaseURL, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s ok in %s\n", cfg.API.BaseURL, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", 10*time.Second, "give up after this long")
}
