// Package doctor provides preflight checks for an omnitoken deployment.
package doctor

import (
	"fmt"
	"io"
	"net"

	"github.com/spf13/afero"

	"github.com/example/go-omnitoken/internal/tokenizer"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Config holds the inputs for each doctor check.
type Config struct {
	Tokenizer tokenizer.Config
	FS        afero.Fs
	ModelPath string
	// Samples are round-tripped through the loaded model.
	Samples []string
	// ListenAddr is checked for host:port syntax when non-empty.
	ListenAddr string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(w io.Writer, check string, err error) {
	r.failures = append(r.failures, fmt.Sprintf("%s: %v", check, err))
	fmt.Fprintf(w, "%s %s: %v\n", FailMark, check, err)
}

// Run executes all checks and writes human-readable output to w. Each
// check line is prefixed with PassMark or FailMark. Model checks are
// skipped when the model cannot be loaded.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- tokenizer config -------------------------------------------------
	if err := cfg.Tokenizer.Validate(); err != nil {
		res.fail(w, "tokenizer config", err)
	} else {
		fmt.Fprintf(w, "%s tokenizer config: %s, vocab_size %d\n", PassMark, cfg.Tokenizer.Method, cfg.Tokenizer.VocabSize)
	}

	// ---- listen address ---------------------------------------------------
	if cfg.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
			res.fail(w, "listen address", err)
		} else {
			fmt.Fprintf(w, "%s listen address: %s\n", PassMark, cfg.ListenAddr)
		}
	}

	// ---- model file -------------------------------------------------------
	tok, err := loadModel(cfg)
	if err != nil {
		res.fail(w, "model file", err)
		return res
	}

	size, err := tok.VocabSize()
	if err != nil {
		res.fail(w, "model file", err)
		return res
	}
	fmt.Fprintf(w, "%s model file: %s (%s, %d tokens)\n", PassMark, cfg.ModelPath, tok.Method(), size)

	if want, err := tokenizer.ParseMethod(cfg.Tokenizer.Method); err == nil && want != tok.Method() {
		res.fail(w, "model method", fmt.Errorf("model is %s but config selects %s", tok.Method(), want))
	}

	// ---- round trips ------------------------------------------------------
	for _, sample := range cfg.Samples {
		ok, err := tok.VerifyRoundTrip(sample)
		switch {
		case err != nil:
			res.fail(w, fmt.Sprintf("round trip %q", sample), err)
		case !ok:
			res.fail(w, fmt.Sprintf("round trip %q", sample), fmt.Errorf("decode does not reproduce the input"))
		default:
			fmt.Fprintf(w, "%s round trip: %q\n", PassMark, sample)
		}
	}

	return res
}

func loadModel(cfg Config) (*tokenizer.Tokenizer, error) {
	if cfg.FS == nil {
		return nil, fmt.Errorf("no filesystem configured")
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("no model path configured")
	}
	return tokenizer.LoadFile(cfg.FS, cfg.ModelPath)
}
