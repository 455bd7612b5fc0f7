package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRecountCommand(a *app) *cobra.Command {
	var board string

	cmd := &cobra.Command{
		Use:   "recount",
		Short: "Recompute child counts on a board",
		RunE: func(cmd *cobra.Command, args []string) error {
			boardValue, err := a.boardFlag(board)
			if err != nil {
				return err
			}
			boardID, err := uuid.Parse(boardValue)
			if err != nil {
				return fmt.Errorf("invalid board id: %w", err)
			}

			changed, err := a.client.Recount(cmd.Context(), boardID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if done, err := a.render(out, map[string]int{"changed": changed}); done {
				return err
			}
			fmt.Fprintf(out, "%d card(s) updated\n", changed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&board, "board", "b", "", "board id")

	return cmd
}
