package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/example/go-omnitoken/internal/config"
	"github.com/example/go-omnitoken/internal/server"
	"github.com/example/go-omnitoken/internal/tokenizer"
)

var (
	cfgFile   string
	activeCfg config.Config

	// appFS backs every model and corpus file access.
	appFS afero.Fs = afero.NewOsFs()
	// scratchFS stages files for libraries that only read from disk paths.
	scratchFS afero.Fs = afero.NewOsFs()
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "omnitoken",
		Short:         "Train and apply subword tokenizers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newTokenizeCmd())
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newVocabCmd())
	cmd.AddCommand(newExportSPMCmd())
	cmd.AddCommand(newVisualizeCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.ModelPath == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// loadModel reads the trained tokenizer at paths.model_path.
func loadModel(cfg config.Config) (*tokenizer.Tokenizer, error) {
	tok, err := tokenizer.LoadFile(appFS, cfg.Paths.ModelPath, tokenizer.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("load model (run 'omnitoken train' first?): %w", err)
	}
	return tok, nil
}

// readText returns text, or stdin when text is blank.
func readText(text string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	input := strings.TrimRight(string(b), "\r\n")
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("either provide --text or pipe text on stdin")
	}
	return input, nil
}
