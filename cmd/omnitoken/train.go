package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-omnitoken/internal/config"
	"github.com/example/go-omnitoken/internal/text"
	"github.com/example/go-omnitoken/internal/tokenizer"
)

type trainSummary struct {
	Method     string  `json:"method"`
	Segments   int     `json:"segments"`
	VocabSize  int     `json:"vocab_size"`
	ModelPath  string  `json:"model_path"`
	DurationMS float64 `json:"duration_ms"`
}

func newTrainCmd() *cobra.Command {
	var (
		inputs   []string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit a tokenizer on a corpus and save it to --model",
		Long: "Each --input is a file path (.txt, .json, .jsonl) or literal text. " +
			"Without --input, stdin is read one segment per line.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			corpus, err := collectCorpus(cfg, inputs, cmd.InOrStdin())
			if err != nil {
				return err
			}

			start := time.Now()
			tok, err := trainTokenizer(cmd, cfg.Tokenizer, corpus)
			if err != nil {
				return err
			}

			if err := tok.SaveFile(appFS, cfg.Paths.ModelPath); err != nil {
				return err
			}

			size, err := tok.VocabSize()
			if err != nil {
				return err
			}

			summary := trainSummary{
				Method:     string(tok.Method()),
				Segments:   len(corpus),
				VocabSize:  size,
				ModelPath:  cfg.Paths.ModelPath,
				DurationMS: float64(time.Since(start).Microseconds()) / 1000,
			}

			out := cmd.OutOrStdout()
			if jsonMode {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			_, err = fmt.Fprintf(out, "trained %s tokenizer: %d tokens from %d segments -> %s\n",
				summary.Method, summary.VocabSize, summary.Segments, summary.ModelPath)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Corpus file or literal text (repeatable)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print the training summary as JSON")

	return cmd
}

// collectCorpus flattens --input values, or stdin lines when none are given.
func collectCorpus(cfg config.Config, inputs []string, stdin io.Reader) ([]string, error) {
	c := text.NewCollector(appFS)
	c.MaxSegmentChars = cfg.Corpus.MaxSegmentChars

	var (
		corpus []string
		err    error
	)
	if len(inputs) == 0 {
		b, readErr := io.ReadAll(stdin)
		if readErr != nil {
			return nil, fmt.Errorf("read stdin: %w", readErr)
		}
		for _, line := range strings.Split(string(b), "\n") {
			if seg, nerr := text.Normalize(line); nerr == nil {
				corpus = append(corpus, seg)
			}
		}
	} else {
		corpus, err = c.Collect(inputs)
	}
	if err != nil {
		return nil, fmt.Errorf("collect corpus: %w", err)
	}

	if len(corpus) == 0 {
		return nil, fmt.Errorf("collect corpus: %w", tokenizer.ErrEmptyCorpus)
	}
	return corpus, nil
}

func trainTokenizer(cmd *cobra.Command, cfg tokenizer.Config, corpus []string) (*tokenizer.Tokenizer, error) {
	tok, err := tokenizer.New(cfg, tokenizer.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}
	if err := tok.Fit(cmd.Context(), corpus); err != nil {
		return nil, err
	}
	return tok, nil
}
