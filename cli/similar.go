package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newSimilarCommand(a *app) *cobra.Command {
	var (
		board       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "similar <title>",
		Short: "List recent cards that look like a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boardValue, err := a.boardFlag(board)
			if err != nil {
				return err
			}
			boardID, err := uuid.Parse(boardValue)
			if err != nil {
				return fmt.Errorf("invalid board id: %w", err)
			}

			matches, err := a.client.FindSimilar(cmd.Context(), boardID, strings.Join(args, " "), description)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if done, err := a.render(out, matches); done {
				return err
			}

			if len(matches) == 0 {
				fmt.Fprintln(out, "No similar cards.")
				return nil
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%3d%%  %s  %s\n", m.SimilarityPercent, m.Card.ID, m.Card.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&board, "board", "b", "", "board id")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description to compare as well")

	return cmd
}
