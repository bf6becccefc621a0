package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/go-omnitoken/internal/tokenizer"
)

func newExportSPMCmd() *cobra.Command {
	var (
		out        string
		verifyText string
	)

	cmd := &cobra.Command{
		Use:   "export-spm",
		Short: "Export the vocabulary as a SentencePiece ModelProto file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if out == "" {
				return fmt.Errorf("--out is required for export-spm")
			}

			tok, err := loadModel(cfg)
			if err != nil {
				return err
			}

			data, err := tokenizer.ExportSentencePiece(tok)
			if err != nil {
				return err
			}

			if dir := filepath.Dir(out); dir != "." {
				if err := appFS.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}
			if err := afero.WriteFile(appFS, out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			w := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(w, "wrote %d bytes to %s\n", len(data), out); err != nil {
				return err
			}

			if verifyText == "" {
				return nil
			}

			// Load the exported proto back through the reference SentencePiece
			// encoder so the file is known to be consumable.
			enc, err := tokenizer.NewSentencePieceEncoder(scratchFS, data)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}
			_, err = fmt.Fprintf(w, "verify: %s\n", formatIDs(enc.Encode(verifyText)))
			return err
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output .model path (required)")
	cmd.Flags().StringVar(&verifyText, "verify-text", "", "Encode this text with the exported model via a SentencePiece encoder")

	return cmd
}
