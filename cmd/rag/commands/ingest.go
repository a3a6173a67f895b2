package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"multimodal-rag/internal/config"
	"multimodal-rag/internal/service"
)

// NewIngestCmd creates the ingest command group.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store documents or recordings in the vector store",
		Long: `Store documents or recordings in the vector store.

With the memory vector store nothing outlives the process; use the tui
command to ingest and query in one session.

Examples:
  rag ingest pdf paper.pdf other.pdf
  rag ingest audio talk.wav
  rag --format json ingest pdf paper.pdf`,
	}
	cmd.AddCommand(newIngestPDFCmd(), newIngestAudioCmd())
	return cmd
}

func newIngestPDFCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pdf <file.pdf>...",
		Short: "Extract, chunk, embed and store PDF documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, config.PathIngestPDF)
			if err != nil {
				return err
			}
			defer app.Close()
			svc, err := app.Service(ctx, config.PathIngestPDF)
			if err != nil {
				return err
			}

			reports := make([]service.IngestReport, 0, len(args))
			for _, path := range args {
				report, err := svc.IngestPDF(ctx, path)
				reports = append(reports, report)
				if err != nil {
					printReports(cmd, reports)
					return fmt.Errorf("ingesting %s: %w", path, err)
				}
			}
			printReports(cmd, reports)
			return nil
		},
	}
}

func printReports(cmd *cobra.Command, reports []service.IngestReport) {
	if outputFormat == "json" {
		_ = writeJSON(cmd.OutOrStdout(), reports)
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SOURCE\tCHUNKS\tSTORED\tSUMMARY\n")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.Source, r.Chunks, r.Stored, truncate(r.Summary, 60))
	}
	w.Flush()
}

type audioOutput struct {
	ID             string `json:"id"`
	Path           string `json:"path"`
	Transcript     string `json:"transcript"`
	Terms          int    `json:"terms"`
	AudioEmbedding bool   `json:"audio_embedding"`
	Searchable     bool   `json:"searchable"`
}

func newIngestAudioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audio <file.wav>...",
		Short: "Transcribe, embed and store WAV recordings",
		Long: `Copy WAV recordings into the recordings directory, transcribe them and
store the transcript with its lexical and audio embeddings.

Transcription expects mono 16-bit 16 kHz PCM; other files are stored with an
empty transcript.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, config.PathIngestAudio)
			if err != nil {
				return err
			}
			defer app.Close()
			svc, err := app.Service(ctx, config.PathIngestAudio)
			if err != nil {
				return err
			}

			out := make([]audioOutput, 0, len(args))
			for _, path := range args {
				rec, err := svc.IngestAudio(ctx, path)
				if err != nil {
					return fmt.Errorf("ingesting %s: %w", path, err)
				}
				out = append(out, audioOutput{
					ID:             rec.ID,
					Path:           rec.FilePath,
					Transcript:     rec.Transcript,
					Terms:          len(rec.LexicalEmbedding),
					AudioEmbedding: rec.AudioEmbedding.IsPresent(),
					Searchable:     rec.TranscriptEmbedding.IsPresent(),
				})
			}
			if outputFormat == "json" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tSAVED AS\tTERMS\tAUDIO EMB\tTRANSCRIPT\n")
			for _, o := range out {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", o.ID, o.Path, o.Terms, o.AudioEmbedding, truncate(o.Transcript, 50))
			}
			return w.Flush()
		},
	}
}
