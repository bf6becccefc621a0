// Package server exposes a trained tokenizer over HTTP/JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-omnitoken/internal/config"
	"github.com/example/go-omnitoken/internal/tokenizer"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Model is the tokenizer surface served over HTTP. *tokenizer.Tokenizer
// satisfies it.
type Model interface {
	Method() tokenizer.Method
	Tokenize(text string) ([]string, error)
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
	Vocab() (map[string]int, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   64 << 10,
		workers:        4,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for
// POST /tokenize and /encode.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent tokenizer calls.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	model Model
	opts  options
	sem   chan struct{} // semaphore for worker pool
	log   *slog.Logger
}

// NewHandler returns an http.Handler that serves GET /health, GET /vocab
// and POST /tokenize, /encode and /decode.
func NewHandler(model Model, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		model: model,
		opts:  opts,
		log:   opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/vocab", h.handleVocab)
	mux.HandleFunc("/tokenize", h.handleTokenize)
	mux.HandleFunc("/encode", h.handleEncode)
	mux.HandleFunc("/decode", h.handleDecode)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
		"method":  string(h.model.Method()),
	})
}

type vocabResponse struct {
	Method string         `json:"method"`
	Size   int            `json:"size"`
	Vocab  map[string]int `json:"vocab"`
}

func (h *handler) handleVocab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	vocab, err := h.model.Vocab()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, vocabResponse{
		Method: string(h.model.Method()),
		Size:   len(vocab),
		Vocab:  vocab,
	})
}

type textRequest struct {
	Text string `json:"text"`
}

type tokenizeResponse struct {
	Tokens []string `json:"tokens"`
	Count  int      `json:"count"`
}

type encodeResponse struct {
	IDs   []int `json:"ids"`
	Count int   `json:"count"`
}

type decodeRequest struct {
	IDs []int `json:"ids"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

func (h *handler) handleTokenize(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readText(w, r)
	if !ok {
		return
	}

	h.serve(w, r, "tokenize", len(req.Text), func() (any, int, error) {
		tokens, err := h.model.Tokenize(req.Text)
		return tokenizeResponse{Tokens: nonNil(tokens), Count: len(tokens)}, len(tokens), err
	})
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readText(w, r)
	if !ok {
		return
	}

	h.serve(w, r, "encode", len(req.Text), func() (any, int, error) {
		ids, err := h.model.Encode(req.Text)
		return encodeResponse{IDs: nonNil(ids), Count: len(ids)}, len(ids), err
	})
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.serve(w, r, "decode", len(req.IDs), func() (any, int, error) {
		text, err := h.model.Decode(req.IDs)
		return decodeResponse{Text: text}, len(req.IDs), err
	})
}

// readText decodes and validates a {"text": ...} body.
func (h *handler) readText(w http.ResponseWriter, r *http.Request) (textRequest, bool) {
	var req textRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return req, false
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return req, false
	}

	return req, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}

	return true
}

type result struct {
	body  any
	items int
	err   error
}

// serve runs fn under a worker slot and the request deadline, logging the
// outcome. inputLen is the request size in bytes or ids.
func (h *handler) serve(w http.ResponseWriter, r *http.Request, op string, inputLen int, fn func() (any, int, error)) {
	// Acquire a worker slot, honouring context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan result, 1)
	// The slot is held until fn returns, even after a timeout response.
	go func() {
		if h.sem != nil {
			defer func() { <-h.sem }()
		}
		body, items, err := fn()
		done <- result{body: body, items: items, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		h.log.WarnContext(r.Context(), op+" timed out",
			slog.Int("input_len", inputLen),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		writeError(w, http.StatusGatewayTimeout, op+" timed out")
		return
	}
	durationMS := time.Since(start).Milliseconds()

	if res.err != nil {
		status := statusFor(res.err)
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.log.Log(r.Context(), level, op+" failed",
			slog.Int("input_len", inputLen),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", res.err.Error()),
		)
		writeError(w, status, res.err.Error())
		return
	}

	h.log.InfoContext(r.Context(), op+" complete",
		slog.String("method", string(h.model.Method())),
		slog.Int("input_len", inputLen),
		slog.Int("output_len", res.items),
		slog.Int64("duration_ms", durationMS),
	)

	writeJSON(w, http.StatusOK, res.body)
}

// statusFor maps tokenizer errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tokenizer.ErrNotTrained):
		return http.StatusServiceUnavailable
	case errors.Is(err, tokenizer.ErrOutOfRangeID), errors.Is(err, tokenizer.ErrMalformedInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	model           Model
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config, model Model) *Server {
	shutdown := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	return &Server{
		cfg:             cfg,
		model:           model,
		logger:          slog.Default(),
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Start serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	if s.model == nil {
		return errors.New("no tokenizer model loaded")
	}

	handlerOpts := []Option{
		WithWorkers(s.cfg.Server.Workers),
		WithLogger(s.logger),
	}
	if s.cfg.Server.MaxTextBytes > 0 {
		handlerOpts = append(handlerOpts, WithMaxTextBytes(s.cfg.Server.MaxTextBytes))
	}
	if s.cfg.Server.RequestTimeout > 0 {
		handlerOpts = append(handlerOpts, WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second))
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           NewHandler(s.model, handlerOpts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("server listening",
		"addr", s.cfg.Server.ListenAddr,
		"method", string(s.model.Method()),
		"workers", s.cfg.Server.Workers,
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
