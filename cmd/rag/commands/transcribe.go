package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"multimodal-rag/internal/config"
	"multimodal-rag/internal/transcriber"
)

// NewTranscribeCmd creates the file-mode transcription command.
func NewTranscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Print the transcript of a mono 16-bit 16 kHz WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, config.PathListen)
			if err != nil {
				return err
			}
			defer app.Close()
			t, err := app.Transcriber()
			if err != nil {
				return err
			}
			text := t.TranscribeFile(ctx, args[0])
			if outputFormat == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"path": args[0], "transcript": text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

var listenChunkBytes int

type listenEvent struct {
	Kind       string `json:"kind"`
	Text       string `json:"text"`
	Transcript string `json:"transcript"`
}

// NewListenCmd creates the streaming transcription command.
func NewListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Transcribe raw PCM from stdin as it arrives",
		Long: `Read raw mono 16-bit little-endian 16 kHz PCM from stdin and print
recognition updates as they arrive. At end of input the final transcript is
printed.

Examples:
  arecord -f S16_LE -r 16000 -c 1 -t raw | rag listen
  rag --format json listen < speech.raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx, config.PathListen)
			if err != nil {
				return err
			}
			defer app.Close()
			t, err := app.Transcriber()
			if err != nil {
				return err
			}
			return listen(cmd, t.NewSession(), cmd.InOrStdin())
		},
	}
	cmd.Flags().IntVar(&listenChunkBytes, "chunk-bytes", 2*transcriber.BlockFrames, "Bytes read from stdin per recognition step")
	return cmd
}

func listen(cmd *cobra.Command, s *transcriber.Session, in io.Reader) error {
	if listenChunkBytes <= 0 {
		return fmt.Errorf("chunk-bytes must be positive, got %d", listenChunkBytes)
	}
	out := cmd.OutOrStdout()
	r := bufio.NewReaderSize(in, listenChunkBytes)
	buf := make([]byte, listenChunkBytes)
	for {
		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			res, err := s.AcceptWaveform(cmd.Context(), buf[:n])
			if err != nil {
				return err
			}
			printListenEvent(out, res)
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("reading stdin: %w", readErr)
		}
	}
	final := s.Finalize()
	if outputFormat == "json" {
		return json.NewEncoder(out).Encode(listenEvent{Kind: "transcript", Text: final, Transcript: final})
	}
	fmt.Fprintln(out, final)
	return nil
}

func printListenEvent(out io.Writer, res transcriber.Result) {
	if res.Kind == transcriber.Empty {
		return
	}
	if outputFormat == "json" {
		_ = json.NewEncoder(out).Encode(listenEvent{Kind: res.Kind.String(), Text: res.Text, Transcript: res.Transcript})
		return
	}
	switch res.Kind {
	case transcriber.FinalSegment:
		fmt.Fprintf(out, "[final] %s\n", res.Text)
	case transcriber.Partial:
		fmt.Fprintf(out, "[partial] %s\n", res.Transcript)
	}
}
