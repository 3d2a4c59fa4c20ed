package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/clinrag/internal/transport/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server exposing the retrieve_evidence and
chunk_document tools to a note-drafting assistant.

By default the server speaks JSON-RPC over stdio. Use --port (or mcp.port in the
config) to serve the streamable HTTP transport instead.

Examples:
  clinrag mcp
  clinrag mcp --port 8090`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = stdio, default from config)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(a.retrieve, a.ingest, retrievalDefaults(cfg.Retrieval), logger)
	if err != nil {
		return err
	}
	server.WithMaxK(cfg.Retrieval.MaxK)

	port := cfg.MCP.Port
	if mcpPort > 0 {
		port = mcpPort
	}
	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
