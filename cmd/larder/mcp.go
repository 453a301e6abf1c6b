package main

import (
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the larder tools over MCP stdio",
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	// stdout carries the protocol.
	cfg, logger, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "larder", Version: "1.0.0"}, nil)
	a.server.RegisterMCP(srv)

	logger.Info("MCP stdio starting")
	return srv.Run(cmd.Context(), &mcp.StdioTransport{})
}
