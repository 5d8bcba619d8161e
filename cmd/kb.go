package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SevenCandid/Seven-Assistant/internal/config"
	"github.com/SevenCandid/Seven-Assistant/internal/knowledge"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base",
}

var kbImportCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Fetch a web page and add its text to the knowledge base",
	Long: `Fetch a web page, strip markup, and store its paragraphs as
knowledge entries.

Examples:
  seven-server kb import https://en.wikipedia.org/wiki/Voyager_program`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		kb, err := knowledge.New(cfg.KnowledgeDir, newEmbedFunc(cfg))
		if err != nil {
			return err
		}

		n, err := kb.IngestURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Added %d entries from %s\n", n, args[0])
		return nil
	},
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge base statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()

		kb, err := knowledge.New(cfg.KnowledgeDir, newEmbedFunc(cfg))
		if err != nil {
			return err
		}

		stats := kb.Stats()
		fmt.Printf("Entries: %d\n", stats.Entries)
		fmt.Printf("Directory: %s\n", cfg.KnowledgeDir)
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbImportCmd)
	kbCmd.AddCommand(kbStatsCmd)
	rootCmd.AddCommand(kbCmd)
}
