// Package cli implements intakectl, the operator tool for reviewing intake suggestions.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kutbudev/boardroom/internal/api"
	"github.com/kutbudev/boardroom/internal/config"
)

// app carries state shared by subcommands
type app struct {
	output  string
	apiURL  string
	actorID string

	cfg    *config.Config
	client *api.Client
}

// NewRootCommand builds the intakectl command tree
func NewRootCommand(version string) *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:     "intakectl",
		Short:   "Review and apply boardroom intake suggestions",
		Version: version,
		Long: `intakectl talks to a boardroom server to review cards waiting in the inbox.

Examples:
  intakectl review --board <board-id>
  intakectl similar --board <board-id> "Fix the gutter"
  intakectl accept <card-id>
  intakectl recount --board <board-id>
  intakectl llm-key set openrouter`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "boardroom API base URL")
	cmd.PersistentFlags().StringVar(&a.actorID, "actor", "", "actor id recorded on accepted suggestions")

	cmd.AddCommand(newReviewCommand(a))
	cmd.AddCommand(newSimilarCommand(a))
	cmd.AddCommand(newAcceptCommand(a))
	cmd.AddCommand(newRecountCommand(a))
	cmd.AddCommand(NewConfigCommand())
	cmd.AddCommand(newLLMKeyCommand())

	return cmd
}

func (a *app) init() error {
	switch a.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output %q (supported: text, json, yaml)", a.output)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = strings.TrimRight(a.apiURL, "/")
	}
	if a.actorID != "" {
		cfg.ActorID = a.actorID
	}
	a.cfg = cfg
	a.client = api.NewClient(cfg)
	return nil
}

// boardFlag resolves --board, falling back to the configured board
func (a *app) boardFlag(value string) (string, error) {
	if value != "" {
		return value, nil
	}
	if a.cfg != nil && a.cfg.BoardID != "" {
		return a.cfg.BoardID, nil
	}
	return "", fmt.Errorf("--board is required (or set board_id with 'intakectl config set board_id <id>')")
}

// render writes v as JSON or YAML. It reports false for text output so the caller prints its own view.
func (a *app) render(w io.Writer, v interface{}) (bool, error) {
	switch a.output {
	case "json":
		b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, err
		}
		_, err = fmt.Fprintln(w, string(b))
		return true, err
	case "yaml":
		// round-trip through JSON so the YAML keys match the API field names
		b, err := sonic.Marshal(v)
		if err != nil {
			return true, err
		}
		var generic interface{}
		if err := sonic.Unmarshal(b, &generic); err != nil {
			return true, err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return true, err
		}
		_, err = w.Write(out)
		return true, err
	default:
		return false, nil
	}
}
