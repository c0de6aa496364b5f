package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "catalogsync",
	Short:         "Mirror the community plugin registry into a catalog database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newSyncCmd(), newVersionCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ catalogsync failed: %v\n", err)
		os.Exit(1)
	}
}
