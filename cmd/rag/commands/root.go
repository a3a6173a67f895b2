package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath      string
	logLevel     string
	logFormat    string
	outputFormat string
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Multimodal research assistant",
		Long: `rag ingests research papers (PDF) and audio recordings (WAV) into a
vector store and answers questions from what it has stored.

Configuration is read from --config, ./config.yaml or
~/.config/rag/config.yaml. Secrets come from the environment or a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			switch outputFormat {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("invalid --format %q: want text or json", outputFormat)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: pretty, json, text (overrides config)")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		NewIngestCmd(),
		NewTranscribeCmd(),
		NewListenCmd(),
		NewAskCmd(),
		NewTUICmd(),
		NewVersionCmd(),
	)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
