package commands

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ABHI-11949/avatar/internal/app"
)

func avatarsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatars",
		Short: "Print the provider's avatar catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			built, err := app.Build(ctx, cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			defer built.Cleanup()

			data, err := built.Gateway.ListAvatars(ctx)
			if err != nil {
				return fmt.Errorf("list avatars: %w", err)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, data, "", "  "); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
	return cmd
}
