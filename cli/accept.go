package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAcceptCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <card-id>...",
		Short: "Accept the stored suggestion for one or more cards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("invalid card id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			for _, id := range ids {
				if err := acceptOne(cmd.Context(), cmd.OutOrStdout(), a.client, id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	return cmd
}
