// Package config loads omnitoken settings from defaults, flags, the
// environment and an optional config file, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-omnitoken/internal/tokenizer"
)

type Config struct {
	Paths     PathsConfig      `mapstructure:"paths"`
	Corpus    CorpusConfig     `mapstructure:"corpus"`
	Tokenizer tokenizer.Config `mapstructure:"tokenizer"`
	Server    ServerConfig     `mapstructure:"server"`
	LogLevel  string           `mapstructure:"log_level"`
}

type PathsConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

type CorpusConfig struct {
	// MaxSegmentChars > 0 splits training documents into sentence groups.
	MaxSegmentChars int `mapstructure:"max_segment_chars"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`  // seconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // seconds
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			ModelPath: "models/omnitoken.json",
		},
		Tokenizer: tokenizer.DefaultConfig(tokenizer.MethodBPE),
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxTextBytes:    64 << 10,
			RequestTimeout:  30,
			ShutdownTimeout: 30,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each config key to the dash-style flag that sets it.
var flagKeys = []struct{ key, flag string }{
	{"paths.model_path", "model"},
	{"corpus.max_segment_chars", "max-segment-chars"},
	{"tokenizer.method", "method"},
	{"tokenizer.vocab_size", "vocab-size"},
	{"tokenizer.min_frequency", "min-frequency"},
	{"tokenizer.special_tokens", "special-tokens"},
	{"tokenizer.unk_token", "unk-token"},
	{"tokenizer.pad_token", "pad-token"},
	{"tokenizer.case_sensitive", "case-sensitive"},
	{"tokenizer.max_token_length", "max-token-length"},
	{"tokenizer.workers", "fit-workers"},
	{"tokenizer.dropout", "dropout"},
	{"tokenizer.seed", "seed"},
	{"tokenizer.end_of_word_suffix", "end-of-word-suffix"},
	{"tokenizer.continuation_prefix", "continuation-prefix"},
	{"tokenizer.do_lower_case", "do-lower-case"},
	{"tokenizer.max_input_chars_per_word", "max-input-chars-per-word"},
	{"tokenizer.char_ratio", "char-ratio"},
	{"tokenizer.word_ratio", "word-ratio"},
	{"tokenizer.subword_ratio", "subword-ratio"},
	{"tokenizer.adaptive_mode", "adaptive"},
	{"server.listen_addr", "listen-addr"},
	{"server.workers", "workers"},
	{"server.max_text_bytes", "max-text-bytes"},
	{"server.request_timeout", "request-timeout"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	t := defaults.Tokenizer

	fs.String("model", defaults.Paths.ModelPath, "Path to the saved tokenizer model")
	fs.Int("max-segment-chars", defaults.Corpus.MaxSegmentChars, "Split training documents into sentence groups of at most this many characters (0 = one segment per line)")
	fs.String("method", t.Method, "Tokenization method: character|bpe|wordpiece|sentencepiece|hybrid")
	fs.Int("vocab-size", t.VocabSize, "Maximum vocabulary size including reserved tokens")
	fs.Int("min-frequency", t.MinFrequency, "Minimum corpus frequency for a learned token")
	fs.StringSlice("special-tokens", t.SpecialTokens, "Additional reserved tokens, in id order")
	fs.String("unk-token", t.UnkToken, "Unknown token (id 0)")
	fs.String("pad-token", t.PadToken, "Padding token (id 1)")
	fs.Bool("case-sensitive", t.CaseSensitive, "Preserve case; false lowercases all text")
	fs.Int("max-token-length", t.MaxTokenLength, "Maximum length of a learned token in characters")
	fs.Int("fit-workers", t.Workers, "Parallel counting workers during fit (0 = GOMAXPROCS)")
	fs.Float64("dropout", t.Dropout, "BPE merge dropout probability in [0,1)")
	fs.Uint64("seed", t.Seed, "Seed for BPE dropout")
	fs.String("end-of-word-suffix", t.EndOfWordSuffix, "BPE end-of-word marker")
	fs.String("continuation-prefix", t.ContinuationPrefix, "WordPiece continuation prefix")
	fs.Bool("do-lower-case", t.DoLowerCase, "WordPiece lowercasing")
	fs.Int("max-input-chars-per-word", t.MaxInputCharsPerWord, "WordPiece words longer than this become the unknown token")
	fs.Float64("char-ratio", t.CharRatio, "Hybrid vocabulary share for characters")
	fs.Float64("word-ratio", t.WordRatio, "Hybrid vocabulary share for whole words")
	fs.Float64("subword-ratio", t.SubwordRatio, "Hybrid vocabulary share for subwords")
	fs.Bool("adaptive", t.AdaptiveMode, "Hybrid per-segment routing (false = subword only)")
	fs.String("listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent tokenization requests")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("OMNITOKEN")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("omnitoken")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	t := c.Tokenizer

	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("corpus.max_segment_chars", c.Corpus.MaxSegmentChars)
	v.SetDefault("tokenizer.method", t.Method)
	v.SetDefault("tokenizer.vocab_size", t.VocabSize)
	v.SetDefault("tokenizer.min_frequency", t.MinFrequency)
	v.SetDefault("tokenizer.special_tokens", t.SpecialTokens)
	v.SetDefault("tokenizer.unk_token", t.UnkToken)
	v.SetDefault("tokenizer.pad_token", t.PadToken)
	v.SetDefault("tokenizer.case_sensitive", t.CaseSensitive)
	v.SetDefault("tokenizer.max_token_length", t.MaxTokenLength)
	v.SetDefault("tokenizer.workers", t.Workers)
	v.SetDefault("tokenizer.dropout", t.Dropout)
	v.SetDefault("tokenizer.seed", t.Seed)
	v.SetDefault("tokenizer.end_of_word_suffix", t.EndOfWordSuffix)
	v.SetDefault("tokenizer.continuation_prefix", t.ContinuationPrefix)
	v.SetDefault("tokenizer.do_lower_case", t.DoLowerCase)
	v.SetDefault("tokenizer.max_input_chars_per_word", t.MaxInputCharsPerWord)
	v.SetDefault("tokenizer.char_ratio", t.CharRatio)
	v.SetDefault("tokenizer.word_ratio", t.WordRatio)
	v.SetDefault("tokenizer.subword_ratio", t.SubwordRatio)
	v.SetDefault("tokenizer.adaptive_mode", t.AdaptiveMode)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds every registered dash-style flag to its dotted key. A
// flag that was not set on the command line yields to env and file values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", fk.flag, err)
		}
	}
	return nil
}
