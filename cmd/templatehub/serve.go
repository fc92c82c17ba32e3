package main

import (
	"fmt"
	"os"

	"github.com/deploykit/templatehub/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort int
	serveMode string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a templatehub server instance",
	Long: `Start the templatehub server with API and/or worker components.

Examples:
  templatehub serve                    # Run both API server and worker
  templatehub serve --mode server      # Run API server only
  templatehub serve --mode worker      # Run extraction worker only
  templatehub serve --port 8080        # Override port

Environment variables:
  TEMPLATEHUB_SERVER_PORT       Server port (default: 8470)
  TEMPLATEHUB_DATABASE_DRIVER   Database driver: sqlite, postgres
  TEMPLATEHUB_DATABASE_DSN      Database connection string
  TEMPLATEHUB_QUEUE_TYPE        Queue type: memory, valkey
  TEMPLATEHUB_STORAGE_TEMPLATES_DIR  Root of extracted template trees`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
	serveCmd.Flags().StringVarP(&serveMode, "mode", "m", "both", "Run mode: server, worker, or both")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := server.Config{
		Port:    servePort,
		Mode:    serveMode,
		Version: Version,
	}

	if err := server.RunWithSignalHandling(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
