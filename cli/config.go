package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kutbudev/boardroom/internal/config"
)

// NewConfigCommand builds the config command
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change intakectl settings",
		Long:  `Settings live in ~/.boardroom/config.json. BOARDROOM_API_URL and BOARDROOM_ACTOR_ID override them.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			path, _ := config.GetConfigPath()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:     %s\n", path)
			fmt.Fprintf(out, "api_url:  %s\n", cfg.APIURL)
			fmt.Fprintf(out, "actor_id: %s\n", cfg.ActorID)
			fmt.Fprintf(out, "board_id: %s\n", cfg.BoardID)
			return nil
		},
	}

	return cmd
}

func newConfigSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config value (api_url, actor_id, board_id)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Set(key, value); err != nil {
				return err
			}
			if err := config.SaveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Setting config: %s = %s\n", key, value)
			return nil
		},
	}

	return cmd
}
