package main

import (
	"encoding/json"
	"os"

	"github.com/ggoodman/notion-mcp-go/internal/app"
	"github.com/ggoodman/notion-mcp-go/internal/config"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	transport string
	host      string
	port      int
	logLevel  string
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "notion-mcp",
		Short: "MCP server exposing a Notion workspace as tools",
		Long: `notion-mcp exposes Notion search, pages, databases, blocks, comments and
users as Model Context Protocol tools.

Settings come from the environment (NOTION_API_KEY, MCP_TRANSPORT, MCP_PORT,
MCP_HOST, LOG_LEVEL, ...). Flags override the environment when given.

Examples:
  NOTION_API_KEY=secret_... notion-mcp
  NOTION_API_KEY=secret_... notion-mcp --transport sse --port 3001
  notion-mcp tools`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, &f, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			level, _ := config.ParseLevel(cfg.LogLevel)
			log := app.NewLogger(os.Stderr, level, cfg.LogFormat)
			return app.New(cfg, log).Run(cmd.Context())
		},
	}

	bindFlags(cmd, &f)
	cmd.AddCommand(newToolsCmd())
	return cmd
}

func bindFlags(cmd *cobra.Command, f *rootFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.transport, "transport", "stdio", "transport to serve: stdio or sse")
	flags.StringVar(&f.host, "host", "", "listen host for the sse transport")
	flags.IntVar(&f.port, "port", 3001, "listen port for the sse transport")
	flags.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

// applyFlags overrides environment settings with explicitly given flags.
func applyFlags(cmd *cobra.Command, f *rootFlags, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport = config.Transport(f.transport)
	}
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"tools": app.Catalog()})
		},
	}
}
