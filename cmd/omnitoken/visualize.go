package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/example/go-omnitoken/internal/tokenizer"
	"github.com/example/go-omnitoken/internal/visualize"
)

func newVisualizeCmd() *cobra.Command {
	var (
		text  string
		width int
	)

	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Show how the trained model splits --text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			tok, err := loadModel(cfg)
			if err != nil {
				return err
			}

			tokens, err := tok.Tokenize(input)
			if err != nil {
				return err
			}
			ids, err := tok.Encode(input)
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), visualize.Tokens(input, tokens, ids, width))
			return err
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to visualize (default: stdin)")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap token cells at this many characters (0 = no wrap)")

	return cmd
}

func newCompareCmd() *cobra.Command {
	var (
		inputs []string
		text   string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Train every method on the same corpus and compare how each splits --text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if text == "" {
				return fmt.Errorf("--text is required for compare")
			}
			if len(inputs) == 0 {
				return fmt.Errorf("at least one --input is required for compare")
			}

			corpus, err := collectCorpus(cfg, inputs, nil)
			if err != nil {
				return err
			}

			results, err := compareMethods(cmd.Context(), cfg.Tokenizer, corpus, text)
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), visualize.Compare(text, results))
			return err
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Corpus file or literal text (repeatable)")
	cmd.Flags().StringVar(&text, "text", "", "Text to tokenize with every method (required)")

	return cmd
}

type methodResult struct {
	method tokenizer.Method
	tokens []string
}

// compareMethods fits one tokenizer per method concurrently from base and
// tokenizes text with each.
func compareMethods(ctx context.Context, base tokenizer.Config, corpus []string, text string) (map[string][]string, error) {
	p := pool.NewWithResults[methodResult]().WithContext(ctx).WithCancelOnError()

	for _, m := range tokenizer.Methods() {
		p.Go(func(ctx context.Context) (methodResult, error) {
			cfg := base
			cfg.Method = string(m)

			tok, err := tokenizer.New(cfg, tokenizer.WithLogger(slog.Default()))
			if err != nil {
				return methodResult{}, fmt.Errorf("%s: %w", m, err)
			}
			if err := tok.Fit(ctx, corpus); err != nil {
				return methodResult{}, err
			}
			tokens, err := tok.Tokenize(text)
			if err != nil {
				return methodResult{}, fmt.Errorf("%s: %w", m, err)
			}
			return methodResult{method: m, tokens: tokens}, nil
		})
	}

	res, err := p.Wait()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(res))
	for _, r := range res {
		out[string(r.method)] = r.tokens
	}
	return out, nil
}
