// Package bench provides benchmarking primitives for the omnitoken bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and size metadata for a single encode run.
type RunResult struct {
	Index    int
	Cold     bool // true for the first run (cold-start)
	Duration time.Duration
	Chars    int
	Tokens   int
}

// CharsPerToken reports the compression of the run. Zero tokens yields 0.
func (r RunResult) CharsPerToken() float64 {
	if r.Tokens == 0 {
		return 0
	}
	return float64(r.Chars) / float64(r.Tokens)
}

// Throughput returns encoded characters per second.
func (r RunResult) Throughput() float64 {
	return CalcThroughput(r.Chars, r.Duration)
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// An empty slice yields zero Stats.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Durations extracts the run durations in order.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}
	return out
}

// ---------------------------------------------------------------------------
// Running
// ---------------------------------------------------------------------------

// Encoder is the part of a tokenizer the bench loop drives.
type Encoder interface {
	Encode(text string) ([]int, error)
}

// Run encodes text the given number of times. Each run executes under a
// pprof "run" label so CPU profiles can separate the cold first pass.
func Run(ctx context.Context, enc Encoder, text string, runs int) ([]RunResult, error) {
	if runs < 1 {
		return nil, errors.New("runs must be at least 1")
	}

	chars := utf8.RuneCountInString(text)
	results := make([]RunResult, 0, runs)

	for i := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		label := "warm"
		if i == 0 {
			label = "cold"
		}

		var (
			ids []int
			err error
			dur time.Duration
		)
		pprof.Do(ctx, pprof.Labels("run", label, "index", strconv.Itoa(i)), func(context.Context) {
			start := time.Now()
			ids, err = enc.Encode(text)
			dur = time.Since(start)
		})
		if err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i+1, err)
		}

		results = append(results, RunResult{
			Index:    i,
			Cold:     i == 0,
			Duration: dur,
			Chars:    chars,
			Tokens:   len(ids),
		})
	}

	return results, nil
}

// StartCPUProfile writes a CPU profile to path on fs until the returned
// stop function is called.
func StartCPUProfile(fs afero.Fs, path string) (func() error, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpuprofile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpuprofile: %w", err)
	}
	return func() error {
		pprof.StopCPUProfile()
		return f.Close()
	}, nil
}

// ---------------------------------------------------------------------------
// Throughput helpers
// ---------------------------------------------------------------------------

// CalcThroughput returns chars / seconds, or 0 for a non-positive duration.
func CalcThroughput(chars int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(chars) / d.Seconds()
}

// MeanThroughput averages the per-run throughput.
func MeanThroughput(runs []RunResult) float64 {
	if len(runs) == 0 {
		return 0
	}
	var total float64
	for _, r := range runs {
		total += r.Throughput()
	}
	return total / float64(len(runs))
}

// CheckThroughputThreshold returns an error if mean falls below floor chars
// per second. A floor of 0 disables the gate.
func CheckThroughputThreshold(mean, floor float64) error {
	if floor <= 0 {
		return nil
	}
	if mean < floor {
		return fmt.Errorf("mean throughput %.0f chars/s below threshold %.0f", mean, floor)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %8s  %12s\n", "Run", "Cold", "MS", "Tokens", "Chars/s")
	fmt.Fprintln(sb, strings.Repeat("-", 49))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.3f  %8d  %12.0f\n",
			r.Index+1,
			cold,
			ms(r.Duration),
			r.Tokens,
			r.Throughput(),
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 49))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  %8s  %12s  (min)\n", "", "", ms(stats.Min), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  %8s  %12s  (mean)\n", "", "", ms(stats.Mean), "", "")
	fmt.Fprintf(sb, "%-5s  %-5s  %10.3f  %8s  %12s  (max)\n", "", "", ms(stats.Max), "", "")

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index         int     `json:"index"`
	Cold          bool    `json:"cold"`
	DurationMS    float64 `json:"duration_ms"`
	Chars         int     `json:"chars"`
	Tokens        int     `json:"tokens"`
	CharsPerToken float64 `json:"chars_per_token"`
	CharsPerSec   float64 `json:"chars_per_sec"`
}

type jsonStats struct {
	MinMS           float64 `json:"min_ms"`
	MeanMS          float64 `json:"mean_ms"`
	MaxMS           float64 `json:"max_ms"`
	MeanCharsPerSec float64 `json:"mean_chars_per_sec"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:           ms(stats.Min),
			MeanMS:          ms(stats.Mean),
			MaxMS:           ms(stats.Max),
			MeanCharsPerSec: MeanThroughput(runs),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:         r.Index,
			Cold:          r.Cold,
			DurationMS:    ms(r.Duration),
			Chars:         r.Chars,
			Tokens:        r.Tokens,
			CharsPerToken: r.CharsPerToken(),
			CharsPerSec:   r.Throughput(),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
