// Package main provides the entry point for the glossary content agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "glossary_agent",
	Short: "AI/ML glossary content generation agent",
	Long:  "Glossary agent generates, quality-scores, and improves educational content for a catalog of AI/ML terms, column by column, with resumable batch runs.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
