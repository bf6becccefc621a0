package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/example/go-omnitoken/internal/tokenizer"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered and
// parses args into it.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}

	return &fakeBinder{fs: fs}
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Paths.ModelPath != "models/omnitoken.json" {
		t.Errorf("ModelPath = %q; want %q", cfg.Paths.ModelPath, "models/omnitoken.json")
	}

	if cfg.Tokenizer.Method != "bpe" {
		t.Errorf("Tokenizer.Method = %q; want bpe", cfg.Tokenizer.Method)
	}

	if cfg.Tokenizer.VocabSize != 1000 {
		t.Errorf("Tokenizer.VocabSize = %d; want 1000", cfg.Tokenizer.VocabSize)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}

	if cfg.Server.Workers != 4 {
		t.Errorf("Server.Workers = %d; want 4", cfg.Server.Workers)
	}

	if cfg.Server.MaxTextBytes != 65536 {
		t.Errorf("Server.MaxTextBytes = %d; want 65536", cfg.Server.MaxTextBytes)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}

	if err := cfg.Tokenizer.Validate(); err != nil {
		t.Errorf("default tokenizer config invalid: %v", err)
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	checks := []struct {
		flag string
		want string
	}{
		{"model", "models/omnitoken.json"},
		{"method", "bpe"},
		{"vocab-size", "1000"},
		{"min-frequency", "2"},
		{"unk-token", "[UNK]"},
		{"continuation-prefix", "##"},
		{"char-ratio", "0.3"},
		{"adaptive", "true"},
		{"listen-addr", ":8080"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}
}

func TestFlagKeys_AllRegistered(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())

	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("flag %q for key %q not registered", fk.flag, fk.key)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.ModelPath != defaults.Paths.ModelPath {
		t.Errorf("ModelPath = %q; want %q", cfg.Paths.ModelPath, defaults.Paths.ModelPath)
	}

	if cfg.Tokenizer.UnkToken != "[UNK]" || cfg.Tokenizer.EndOfWordSuffix != "</w>" {
		t.Errorf("tokenizer defaults lost: %+v", cfg.Tokenizer)
	}

	if cfg.Server.Workers != defaults.Server.Workers {
		t.Errorf("Server.Workers = %d; want %d", cfg.Server.Workers, defaults.Server.Workers)
	}

	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, defaults.LogLevel)
	}
}

func TestLoad_NilCmd(t *testing.T) {
	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tokenizer.VocabSize != defaults.Tokenizer.VocabSize {
		t.Errorf("Tokenizer.VocabSize = %d; want %d", cfg.Tokenizer.VocabSize, defaults.Tokenizer.VocabSize)
	}

	if cfg.Server.ListenAddr != defaults.Server.ListenAddr {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, defaults.Server.ListenAddr)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults,
		"--method=wordpiece",
		"--vocab-size=500",
		"--special-tokens=[CLS],[SEP]",
		"--dropout=0.1",
		"--seed=42",
		"--adaptive=false",
		"--workers=8",
		"--log-level=debug",
	)

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tokenizer.Method != "wordpiece" {
		t.Errorf("Tokenizer.Method = %q; want wordpiece", cfg.Tokenizer.Method)
	}

	if cfg.Tokenizer.VocabSize != 500 {
		t.Errorf("Tokenizer.VocabSize = %d; want 500", cfg.Tokenizer.VocabSize)
	}

	if got := cfg.Tokenizer.SpecialTokens; len(got) != 2 || got[0] != "[CLS]" || got[1] != "[SEP]" {
		t.Errorf("Tokenizer.SpecialTokens = %v; want [[CLS] [SEP]]", got)
	}

	if cfg.Tokenizer.Dropout != 0.1 || cfg.Tokenizer.Seed != 42 {
		t.Errorf("dropout/seed = %v/%d; want 0.1/42", cfg.Tokenizer.Dropout, cfg.Tokenizer.Seed)
	}

	if cfg.Tokenizer.AdaptiveMode {
		t.Error("Tokenizer.AdaptiveMode = true; want false")
	}

	if cfg.Server.Workers != 8 {
		t.Errorf("Server.Workers = %d; want 8", cfg.Server.Workers)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OMNITOKEN_LOG_LEVEL", "warn")
	t.Setenv("OMNITOKEN_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("OMNITOKEN_TOKENIZER_VOCAB_SIZE", "321")
	t.Setenv("OMNITOKEN_PATHS_MODEL_PATH", "/env/model.json")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}

	if cfg.Tokenizer.VocabSize != 321 {
		t.Errorf("Tokenizer.VocabSize = %d; want 321", cfg.Tokenizer.VocabSize)
	}

	if cfg.Paths.ModelPath != "/env/model.json" {
		t.Errorf("Paths.ModelPath = %q; want %q", cfg.Paths.ModelPath, "/env/model.json")
	}
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("OMNITOKEN_TOKENIZER_METHOD", "character")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults, "--method=hybrid"),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tokenizer.Method != "hybrid" {
		t.Errorf("Tokenizer.Method = %q; want hybrid", cfg.Tokenizer.Method)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	cfgFile := writeConfigFile(t, "omnitoken.yaml", `
log_level: error
paths:
  model_path: /data/model.json
tokenizer:
  method: sentencepiece
  vocab_size: 2000
  special_tokens: ["<s>", "</s>"]
  case_sensitive: false
server:
  workers: 16
  listen_addr: ":7777"
`)

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:        newFlagBinder(t, defaults, "--workers=2"),
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Paths.ModelPath != "/data/model.json" {
		t.Errorf("Paths.ModelPath = %q; want %q", cfg.Paths.ModelPath, "/data/model.json")
	}

	if cfg.Tokenizer.Method != string(tokenizer.MethodSentencePiece) || cfg.Tokenizer.VocabSize != 2000 {
		t.Errorf("tokenizer = %s/%d; want sentencepiece/2000", cfg.Tokenizer.Method, cfg.Tokenizer.VocabSize)
	}

	if got := cfg.Tokenizer.SpecialTokens; len(got) != 2 || got[0] != "<s>" {
		t.Errorf("Tokenizer.SpecialTokens = %v", got)
	}

	if cfg.Tokenizer.CaseSensitive {
		t.Error("Tokenizer.CaseSensitive = true; want false from file")
	}

	// Defaults not mentioned in the file survive.
	if cfg.Tokenizer.ContinuationPrefix != "##" {
		t.Errorf("Tokenizer.ContinuationPrefix = %q; want ##", cfg.Tokenizer.ContinuationPrefix)
	}

	// An explicit flag beats the file.
	if cfg.Server.Workers != 2 {
		t.Errorf("Server.Workers = %d; want 2", cfg.Server.Workers)
	}

	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":7777")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	cfgFile := writeConfigFile(t, "bad.yaml", ":\t:bad yaml:::")

	_, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/omnitoken.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}
