package commands

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/urfave/cli/v2"

	"github.com/kutbudev/boardroom/internal/mcp"
)

func NewMcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "MCP (Model Context Protocol) server",
		Subcommands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start MCP server (stdio)",
				Action: func(c *cli.Context) error {
					rt, err := newRuntime()
					if err != nil {
						return err
					}
					defer rt.Close()

					srv, err := mcp.New(rt.engine, rt.store, rt.logger)
					if err != nil {
						return err
					}
					return srv.ServeStdio(c.Context)
				},
			},
			{
				Name:  "config",
				Usage: "Print MCP client config",
				Action: func(c *cli.Context) error {
					printGenericConfig()
					return nil
				},
			},
		},
	}
}

func printGenericConfig() {
	cfg := map[string]interface{}{
		"mcpServers": map[string]interface{}{
			"boardroom": map[string]interface{}{
				"command": "boardroom",
				"args":    []string{"mcp", "serve"},
			},
		},
	}
	b, _ := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	fmt.Println(string(b))
}
