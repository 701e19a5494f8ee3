package cmd

import (
	"fmt"
	"log"
	"os"

	"RezoFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rezofm_server",
	Short: "RezoFM is a music streaming backend.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting RezoFM server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
