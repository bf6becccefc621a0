package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/example/go-omnitoken/internal/bench"
)

// ---------------------------------------------------------------------------
// Aggregation (min/max/mean)
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStats_SingleRun(t *testing.T) {
	s := bench.ComputeStats([]time.Duration{150 * time.Millisecond})
	if s.Min != s.Max || s.Min != s.Mean {
		t.Errorf("single run: min/max/mean should all be equal, got min=%v max=%v mean=%v", s.Min, s.Max, s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("want zero stats, got %+v", s)
	}
}

// ---------------------------------------------------------------------------
// Throughput
// ---------------------------------------------------------------------------

func TestThroughput_Calculation(t *testing.T) {
	// 500 chars in 250ms → 2000 chars/s
	got := bench.CalcThroughput(500, 250*time.Millisecond)
	if got < 1999.9 || got > 2000.1 {
		t.Errorf("want throughput≈2000, got %.4f", got)
	}
}

func TestThroughput_ZeroDuration(t *testing.T) {
	if got := bench.CalcThroughput(500, 0); got != 0 {
		t.Errorf("want 0 for zero duration, got %.4f", got)
	}
}

func TestRunResult_CharsPerToken(t *testing.T) {
	r := bench.RunResult{Chars: 12, Tokens: 4}
	if got := r.CharsPerToken(); got != 3 {
		t.Errorf("want 3 chars/token, got %v", got)
	}

	if got := (bench.RunResult{Chars: 12}).CharsPerToken(); got != 0 {
		t.Errorf("want 0 for zero tokens, got %v", got)
	}
}

func TestMeanThroughput(t *testing.T) {
	runs := []bench.RunResult{
		{Chars: 100, Duration: time.Second},
		{Chars: 300, Duration: time.Second},
	}
	if got := bench.MeanThroughput(runs); got != 200 {
		t.Errorf("want mean 200, got %v", got)
	}

	if got := bench.MeanThroughput(nil); got != 0 {
		t.Errorf("want 0 for no runs, got %v", got)
	}
}

// ---------------------------------------------------------------------------
// Throughput threshold gate
// ---------------------------------------------------------------------------

func TestThroughputThreshold(t *testing.T) {
	tests := []struct {
		name    string
		mean    float64
		floor   float64
		wantErr bool
	}{
		{"below floor", 500, 1000, true},
		{"above floor", 1500, 1000, false},
		{"exactly at floor", 1000, 1000, false},
		{"disabled when zero", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bench.CheckThroughputThreshold(tt.mean, tt.floor)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckThroughputThreshold(%v, %v) err = %v, wantErr %v", tt.mean, tt.floor, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

type fieldsEncoder struct {
	calls int
	err   error
}

func (e *fieldsEncoder) Encode(text string) ([]int, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return make([]int, len(strings.Fields(text))), nil
}

func TestRun(t *testing.T) {
	enc := &fieldsEncoder{}

	runs, err := bench.Run(context.Background(), enc, "héllo big world", 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(runs) != 3 || enc.calls != 3 {
		t.Fatalf("want 3 runs and 3 calls, got %d runs, %d calls", len(runs), enc.calls)
	}

	for i, r := range runs {
		if r.Index != i {
			t.Errorf("run %d: index = %d", i, r.Index)
		}
		if r.Cold != (i == 0) {
			t.Errorf("run %d: cold = %v", i, r.Cold)
		}
		if r.Chars != 15 || r.Tokens != 3 {
			t.Errorf("run %d: chars=%d tokens=%d, want 15/3", i, r.Chars, r.Tokens)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	boom := errors.New("boom")

	if _, err := bench.Run(context.Background(), &fieldsEncoder{err: boom}, "x", 2); !errors.Is(err, boom) {
		t.Errorf("want encoder error, got %v", err)
	}

	if _, err := bench.Run(context.Background(), &fieldsEncoder{}, "x", 0); err == nil {
		t.Error("want error for zero runs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := bench.Run(ctx, &fieldsEncoder{}, "x", 2); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestStartCPUProfile(t *testing.T) {
	fs := afero.NewMemMapFs()

	stop, err := bench.StartCPUProfile(fs, "cpu.pprof")
	if err != nil {
		t.Fatalf("StartCPUProfile: %v", err)
	}

	if err := stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if ok, _ := afero.Exists(fs, "cpu.pprof"); !ok {
		t.Error("profile file not created")
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func sampleRuns() ([]bench.RunResult, bench.Stats) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, Chars: 400, Tokens: 100},
		{Index: 1, Cold: false, Duration: 400 * time.Millisecond, Chars: 400, Tokens: 100},
	}
	return runs, bench.ComputeStats(bench.Durations(runs))
}

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs, stats := sampleRuns()

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "tokens", "chars/s", "(mean)", "800.000", "1000"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs, stats := sampleRuns()

	var buf bytes.Buffer
	bench.FormatJSON(runs, stats, &buf)

	var out struct {
		Runs []struct {
			CharsPerToken float64 `json:"chars_per_token"`
			CharsPerSec   float64 `json:"chars_per_sec"`
		} `json:"runs"`
		Stats struct {
			MeanMS          float64 `json:"mean_ms"`
			MeanCharsPerSec float64 `json:"mean_chars_per_sec"`
		} `json:"stats"`
	}

	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}

	if len(out.Runs) != 2 || out.Runs[0].CharsPerToken != 4 || out.Runs[1].CharsPerSec != 1000 {
		t.Errorf("unexpected runs: %+v", out.Runs)
	}

	if out.Stats.MeanMS != 600 || out.Stats.MeanCharsPerSec != 750 {
		t.Errorf("unexpected stats: %+v", out.Stats)
	}
}
