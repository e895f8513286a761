package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tripintel",
	Short: "tripintel - grounded travel intelligence reports",
	Long: `tripintel serves a small trip planning API backed by the Gemini
generateContent endpoint with Google Search grounding, and renders the
resulting briefings as sanitized HTML with their web sources.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
}
