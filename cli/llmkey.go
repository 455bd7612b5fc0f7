package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kutbudev/boardroom/internal/secrets"
)

func newLLMKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "llm-key",
		Short: "Manage language model API keys used by a local boardroom server",
		Long: `Keys are kept in the system keyring, or in ~/.boardroom/keys when no keyring is available.
Environment variables such as OPENROUTER_API_KEY take precedence over stored keys.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider>",
		Short: "Store a key (prompts without echo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := readSecret(cmd, fmt.Sprintf("%s API key: ", args[0]))
			if err != nil {
				return err
			}
			if err := secrets.StoreAPIKey(args[0], key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key (%s)\n", args[0], secrets.StorageMode())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <provider>",
		Short: "Remove a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secrets.DeleteAPIKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s key\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <provider>",
		Short: "Report whether a key is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.LoadAPIKey(args[0])
			out := cmd.OutOrStdout()
			switch {
			case errors.Is(err, secrets.ErrNotFound):
				fmt.Fprintf(out, "%s: not set (%s)\n", args[0], secrets.StorageMode())
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(out, "%s: %s (%s)\n", args[0], maskKey(key), secrets.StorageMode())
			return nil
		},
	})

	return cmd
}

// readSecret reads without echo on a terminal, or one line from piped input
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
