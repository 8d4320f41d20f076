package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blogbot",
	Short: "BlogBot - RAG chat backend for the blog platform",
	Long: `BlogBot indexes blog articles into a vector index, keeps the index in
sync with the database via LISTEN/NOTIFY, and answers reader questions
from retrieved article content through a hosted LLM.

Example usage:
  blogbot serve      # run the chat API server
  blogbot reindex    # force a full rebuild of the vector index`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load() // silently ignore if .env doesn't exist
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
