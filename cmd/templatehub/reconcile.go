package main

import (
	"fmt"
	"os"

	"github.com/deploykit/templatehub/internal/server"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation sweep over unresolved templates",
	Long: `Scan all templates recorded as pending or extracting, look for completion
markers in their expected directories, and promote matches to complete.
Safe to run repeatedly; a promoted template is not selected again.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		res, err := server.RunSweep(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("checked=%d promoted=%d stale=%d\n", res.Checked, res.Promoted, res.Stale)
	},
}
