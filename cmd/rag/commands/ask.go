package commands

import (
	"fmt"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"multimodal-rag/internal/config"
	"multimodal-rag/internal/service"
	"multimodal-rag/internal/tui"
)

var askIngest []string

// NewAskCmd creates the question answering command.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer a question from the stored material",
		Long: `Retrieve the stored chunks and recordings closest to the query and ask
the language model to answer from them only.

Examples:
  rag ask "What is multi-head attention?"
  rag ask --ingest paper.pdf "What dataset was used?"
  rag --format json ask "Which optimizer was used?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, config.PathQuery)
			if err != nil {
				return err
			}
			defer app.Close()
			svc, err := app.Service(ctx, config.PathQuery)
			if err != nil {
				return err
			}
			for _, path := range askIngest {
				if _, err := svc.IngestPDF(ctx, path); err != nil {
					return fmt.Errorf("ingesting %s: %w", path, err)
				}
			}

			ans, err := svc.Ask(ctx, args[0])
			if err != nil {
				return err
			}
			return printAnswer(cmd, ans)
		},
	}
	cmd.Flags().StringSliceVar(&askIngest, "ingest", nil, "PDF files to ingest before asking")
	return cmd
}

func printAnswer(cmd *cobra.Command, ans service.Answer) error {
	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), ans)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", ans.Answer)
	if len(ans.Matches) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SIMILARITY\tKIND\tSOURCE\tPREVIEW\n")
	for _, m := range ans.Matches {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", m.Similarity, m.Kind, truncate(m.Label, 30), truncate(m.Content, 60))
	}
	return w.Flush()
}

// NewTUICmd creates the interactive query shell.
func NewTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui [file.pdf]...",
		Short: "Ingest documents and open an interactive question shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, config.PathQuery)
			if err != nil {
				return err
			}
			defer app.Close()
			svc, err := app.Service(ctx, config.PathQuery)
			if err != nil {
				return err
			}

			summary := "Asking the configured vector store."
			for _, path := range args {
				report, err := svc.IngestPDF(ctx, path)
				if err != nil {
					return fmt.Errorf("ingesting %s: %w", path, err)
				}
				summary = report.Summary
			}
			if len(args) > 1 {
				summary = fmt.Sprintf("Ingested %d documents.", len(args))
			}

			timeout := seconds(app.Config.Generator.TimeoutSecs) * 2
			_, err = tea.NewProgram(tui.New(svc, summary, timeout), tea.WithContext(ctx)).Run()
			return err
		},
	}
}
