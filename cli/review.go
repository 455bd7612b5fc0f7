package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kutbudev/boardroom/internal/api"
	"github.com/kutbudev/boardroom/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func newReviewCommand(a *app) *cobra.Command {
	var (
		board         string
		minConfidence float64
		yes           bool
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Walk through suggested cards and accept or skip each one",
		RunE: func(cmd *cobra.Command, args []string) error {
			boardValue, err := a.boardFlag(board)
			if err != nil {
				return err
			}
			boardID, err := uuid.Parse(boardValue)
			if err != nil {
				return fmt.Errorf("invalid board id: %w", err)
			}
			if !yes && !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("review is interactive; pass --yes to accept without prompting")
			}

			ctx := cmd.Context()
			cards, err := a.client.ListCards(ctx, boardID, models.IntakeSuggested)
			if err != nil {
				return err
			}
			cards = filterByConfidence(cards, minConfidence)
			out := cmd.OutOrStdout()
			if len(cards) == 0 {
				fmt.Fprintln(out, "No suggestions waiting for review.")
				return nil
			}

			accepted, skipped := 0, 0
			for i := range cards {
				card := &cards[i]
				fmt.Fprintln(out, renderSuggestion(card, parentTitle(ctx, a.client, card), markdownRenderer()))

				ok := yes
				if !yes {
					prompt := &survey.Confirm{
						Message: fmt.Sprintf("Accept suggestion for %q?", card.Title),
						Default: true,
					}
					if err := survey.AskOne(prompt, &ok); err != nil {
						return err
					}
				}
				if !ok {
					skipped++
					continue
				}
				if err := acceptOne(ctx, out, a.client, card.ID); err != nil {
					return err
				}
				accepted++
			}
			fmt.Fprintf(out, "\n%d accepted, %d skipped\n", accepted, skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&board, "board", "b", "", "board id")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "only review suggestions at or above this confidence")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "accept every suggestion without prompting")

	return cmd
}

func filterByConfidence(cards []models.Card, min float64) []models.Card {
	if min <= 0 {
		return cards
	}
	out := cards[:0]
	for _, c := range cards {
		if c.AIConfidence != nil && *c.AIConfidence >= min {
			out = append(out, c)
		}
	}
	return out
}

func parentTitle(ctx context.Context, client *api.Client, card *models.Card) string {
	if card.AISuggestedParentID == nil {
		return ""
	}
	parent, err := client.GetCard(ctx, *card.AISuggestedParentID)
	if err != nil {
		return card.AISuggestedParentID.String()
	}
	return parent.Title
}

// markdownRenderer uses plain styling off a terminal
func markdownRenderer() *glamour.TermRenderer {
	style := glamour.WithStandardStyle("notty")
	if term.IsTerminal(int(os.Stdout.Fd())) {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(80))
	if err != nil {
		return nil
	}
	return r
}

// renderSuggestion formats one suggested card. md may be nil.
func renderSuggestion(card *models.Card, parent string, md *glamour.TermRenderer) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(card.Title))
	b.WriteString("\n")

	confidence := "n/a"
	if card.AIConfidence != nil {
		confidence = fmt.Sprintf("%.0f%%", *card.AIConfidence*100)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("confidence:"), confidence)
	if parent != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("parent:"), parent)
	}
	if len(card.AILabels) > 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("labels:"), strings.Join(card.AILabels, ", "))
	}
	if links := card.AISuggestedLinks; links.State == models.LinksSuggested {
		fmt.Fprintf(&b, "%s %d vendor(s), %d contact(s)\n",
			labelStyle.Render("links:"), len(links.Vendors), len(links.Contacts))
	}

	if card.AISummary != nil && *card.AISummary != "" {
		summary := *card.AISummary
		if md != nil {
			if rendered, err := md.Render(summary); err == nil {
				summary = strings.TrimSpace(rendered)
			}
		}
		b.WriteString(summary)
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func acceptOne(ctx context.Context, out io.Writer, client *api.Client, id uuid.UUID) error {
	res, err := client.Accept(ctx, id)
	if api.IsConflict(err) {
		fmt.Fprintf(out, "%s already placed or blocked: %v\n", id, err)
		return nil
	}
	if err != nil {
		return err
	}
	if res.ParentID != nil {
		fmt.Fprintf(out, "Placed %s under %s\n", res.CardID, *res.ParentID)
	} else {
		fmt.Fprintf(out, "Placed %s\n", res.CardID)
	}
	return nil
}
