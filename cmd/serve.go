package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samsaffron/seek-chat/internal/chatapi"
	"github.com/samsaffron/seek-chat/internal/config"
	"github.com/samsaffron/seek-chat/internal/llm"
	"github.com/samsaffron/seek-chat/internal/normalize"
	"github.com/samsaffron/seek-chat/internal/render"
	"github.com/samsaffron/seek-chat/internal/serveui"
	"github.com/samsaffron/seek-chat/internal/signal"
	"github.com/samsaffron/seek-chat/internal/turn"
	"github.com/spf13/cobra"
)

var (
	serveHost        string
	servePort        int
	serveUI          bool
	serveNoUI        bool
	serveCORSOrigins []string
	serveRateLimit   float64
	serveDebug       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat proxy server",
	Long: `Run an HTTP server that forwards chat messages to DeepSeek and streams
the answer back.

Endpoints:
  POST /api/chat     chat proxy, streamed in the data stream format
  POST /api/render   markdown + math + code to HTML
  GET  /healthz
  GET  /metrics      Prometheus metrics
  GET  /             browser chat page (disable with --no-ui)

The API key is read from deepseek.api_key, DEEPSEEK_API_KEY or a .env file.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default from config, 8080)")
	serveCmd.Flags().BoolVar(&serveUI, "ui", false, "Serve the browser chat page")
	serveCmd.Flags().BoolVar(&serveNoUI, "no-ui", false, "Do not serve the browser chat page")
	serveCmd.Flags().StringArrayVar(&serveCORSOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable, or '*' for all)")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", -1, "Requests per second per client on /api/chat (0 disables)")
	AddDebugFlag(serveCmd, &serveDebug)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, cfg)
	if cfg.Serve.Port <= 0 || cfg.Serve.Port > 65535 {
		return fmt.Errorf("invalid --port %d (must be 1-65535)", cfg.Serve.Port)
	}

	logger := newLogger(cmd.ErrOrStderr(), serveDebug)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext()
	defer stop()

	s := newServeServer(cfg, newSender(cfg), logger)
	if err := s.Start(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "seek-chat serve listening on http://%s\n", cfg.Serve.Addr())
	fmt.Fprintf(cmd.ErrOrStderr(), "model: %s\n", cfg.DeepSeek.Model)
	fmt.Fprintf(cmd.ErrOrStderr(), "ui: %v\n", cfg.Serve.UI)
	if cfg.DeepSeek.APIKey == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: DEEPSEEK_API_KEY is not set; /api/chat will answer 500")
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if serveHost != "" {
		cfg.Serve.Host = serveHost
	}
	if servePort != 0 {
		cfg.Serve.Port = servePort
	}
	if cmd.Flags().Changed("ui") {
		cfg.Serve.UI = serveUI
	}
	if serveNoUI {
		cfg.Serve.UI = false
	}
	if len(serveCORSOrigins) > 0 {
		cfg.Serve.CORSOrigins = append([]string(nil), serveCORSOrigins...)
	}
	if serveRateLimit >= 0 {
		cfg.Serve.RateLimit = serveRateLimit
	}
}

// newSender builds the one provider client shared by every request.
func newSender(cfg *config.Config) *turn.ProviderSender {
	provider := llm.NewDeepSeekProvider(llm.DeepSeekConfig{
		APIKey:  cfg.DeepSeek.APIKey,
		BaseURL: cfg.DeepSeek.BaseURL,
		Model:   cfg.DeepSeek.Model,
		Timeout: cfg.DeepSeek.Timeout,
	})
	sender := turn.NewProviderSender(provider)
	sender.Model = cfg.DeepSeek.Model
	sender.Temperature = cfg.DeepSeek.Temperature
	sender.MathTemperature = cfg.DeepSeek.MathTemperature
	sender.MathDetection = cfg.DeepSeek.MathDetection
	if cfg.DeepSeek.InjectSystemPrompt {
		sender.SystemPrompt = llm.PlainArithmeticInstruction
	}
	return sender
}

type serveServerConfig struct {
	host        string
	port        int
	ui          bool
	corsOrigins []string
	rateLimit   float64
	rateBurst   int
	apiKey      string
	codeTheme   string
}

type serveServer struct {
	cfg      serveServerConfig
	sender   turn.Sender
	renderer *render.Renderer
	limiter  *limiterPool
	metrics  *serveMetrics
	log      *slog.Logger
	server   *http.Server
}

func newServeServer(cfg *config.Config, sender turn.Sender, logger *slog.Logger) *serveServer {
	if logger == nil {
		logger = slog.Default()
	}
	sc := serveServerConfig{
		host:        cfg.Serve.Host,
		port:        cfg.Serve.Port,
		ui:          cfg.Serve.UI,
		corsOrigins: append([]string(nil), cfg.Serve.CORSOrigins...),
		rateLimit:   cfg.Serve.RateLimit,
		rateBurst:   cfg.Serve.RateBurst,
		apiKey:      cfg.DeepSeek.APIKey,
		codeTheme:   cfg.UI.CodeTheme,
	}
	return &serveServer{
		cfg:    sc,
		sender: sender,
		renderer: render.New(render.Options{
			Theme:    sc.codeTheme,
			Sync:     true,
			Pipeline: normalize.New(normalize.Options{FinalAnswerFixup: cfg.Normalize.FinalAnswerFixup}),
		}),
		limiter: newLimiterPool(sc.rateLimit, sc.rateBurst),
		metrics: newServeMetrics(),
		log:     logger,
	}
}

func (s *serveServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.handler())
	mux.HandleFunc("/api/chat", s.cors(s.rateLimit(s.handleChat)))
	mux.HandleFunc("/api/render", s.cors(s.handleRender))

	if s.cfg.ui {
		mux.HandleFunc("/", s.cors(s.handleUI))
	}
	return mux
}

func (s *serveServer) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.host, s.cfg.port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

func (s *serveServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *serveServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *serveServer) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	etag := serveui.ETag()
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(serveui.IndexHTML())
}

func (s *serveServer) cors(next http.HandlerFunc) http.HandlerFunc {
	allowed := make(map[string]struct{}, len(s.cfg.corsOrigins))
	allowAll := false
	for _, origin := range s.cfg.corsOrigins {
		o := strings.TrimSpace(origin)
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
			continue
		}
		allowed[o] = struct{}{}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Expose-Headers", chatapi.StreamHeader)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

func (s *serveServer) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			s.metrics.rateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests", "Rate limit exceeded, please slow down")
			return
		}
		next(w, r)
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *serveServer) handleChat(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	defer func() {
		s.metrics.requests.WithLabelValues("chat", strconv.Itoa(status)).Inc()
	}()
	fail := func(code int, body chatapi.ErrorBody) {
		status = code
		writeJSON(w, code, body)
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		fail(http.StatusMethodNotAllowed, chatapi.ErrorBody{Error: "Method not allowed"})
		return
	}

	body, err := readBody(r)
	if err != nil {
		fail(http.StatusBadRequest, chatapi.ErrorBody{Error: chatapi.ErrorInvalidRequest, Message: err.Error()})
		return
	}
	raw, err := chatapi.DecodeRequest(body)
	if err != nil {
		fail(http.StatusBadRequest, chatapi.ErrorBody{Error: chatapi.ErrorInvalidRequest, Message: "Request body must be valid JSON"})
		return
	}

	if s.cfg.apiKey == "" {
		s.log.Error("chat request without API key configured")
		fail(http.StatusInternalServerError, chatapi.ErrorBody{Error: chatapi.ErrorMissingKey, Message: chatapi.MessageMissingKey})
		return
	}

	messages, err := raw.Messages()
	if err != nil {
		msg := chatapi.MessageMissingMessage
		if !errors.Is(err, chatapi.ErrMessagesRequired) {
			msg = err.Error()
		}
		fail(http.StatusBadRequest, chatapi.ErrorBody{Error: chatapi.ErrorInvalidRequest, Message: msg})
		return
	}
	if llm.IsMathTurn(messages) {
		s.metrics.mathTurns.Inc()
	}

	start := time.Now()
	stream, err := s.sender.Send(r.Context(), messages)
	if err != nil {
		s.log.Warn("provider call failed", "error", err)
		fail(http.StatusBadGateway, streamErrorBody(err))
		return
	}
	defer stream.Close()

	// Nothing is committed until the provider produced its first event, so
	// an early failure can still be reported as a JSON 502.
	first, err := stream.Recv()
	if err != nil && err != io.EOF {
		s.log.Warn("provider stream failed before first token", "error", err)
		fail(http.StatusBadGateway, streamErrorBody(err))
		return
	}

	chatapi.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	sw := chatapi.NewWriter(w)
	s.pipe(r.Context(), sw, stream, first, err)
	s.metrics.streamDuration.Observe(time.Since(start).Seconds())
}

// pipe copies provider events into the data stream. first and firstErr are
// the result of the Recv that preceded the response headers.
func (s *serveServer) pipe(ctx context.Context, sw *chatapi.Writer, stream llm.Stream, first llm.Event, firstErr error) {
	var usage *llm.Usage
	ev, err := first, firstErr
	for {
		if err == io.EOF {
			_ = sw.Finish(chatapi.FinishReasonStop, usage)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				s.log.Debug("client went away mid-stream", "error", err)
				return
			}
			s.log.Warn("provider stream failed", "error", err)
			_ = sw.Error(err.Error())
			return
		}
		switch ev.Type {
		case llm.EventTextDelta:
			if ev.Text != "" {
				if werr := sw.Text(ev.Text); werr != nil {
					s.log.Debug("write to client failed", "error", werr)
					return
				}
			}
		case llm.EventUsage:
			if ev.Use != nil {
				usage = ev.Use
				s.metrics.tokens.WithLabelValues("prompt").Add(float64(ev.Use.InputTokens))
				s.metrics.tokens.WithLabelValues("completion").Add(float64(ev.Use.OutputTokens))
			}
		case llm.EventDone:
			_ = sw.Finish(chatapi.FinishReasonStop, usage)
			return
		}
		ev, err = stream.Recv()
	}
}

func streamErrorBody(err error) chatapi.ErrorBody {
	return chatapi.ErrorBody{
		Error:   chatapi.ErrorStreaming,
		Message: chatapi.MessageStreamFailed,
		Details: err.Error(),
	}
}

type renderRequest struct {
	Content string `json:"content"`
	Theme   string `json:"theme"`
}

type renderResponse struct {
	HTML    string `json:"html"`
	Pending int    `json:"pending"`
}

func (s *serveServer) handleRender(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	defer func() {
		s.metrics.requests.WithLabelValues("render", strconv.Itoa(status)).Inc()
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		status = http.StatusMethodNotAllowed
		writeError(w, status, "Method not allowed", "")
		return
	}
	if err := requireJSONContentType(r); err != nil {
		status = http.StatusUnsupportedMediaType
		writeError(w, status, chatapi.ErrorInvalidRequest, err.Error())
		return
	}
	var req renderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, chatapi.ErrorInvalidRequest, err.Error())
		return
	}

	res, err := s.renderer.RenderWithTheme(s.renderer.Prepare(req.Content), req.Theme)
	if err != nil {
		status = http.StatusInternalServerError
		writeError(w, status, "Render error", err.Error())
		return
	}
	writeJSON(w, status, renderResponse{HTML: res.HTML, Pending: res.Pending})
}

func writeError(w http.ResponseWriter, status int, errText, message string) {
	writeJSON(w, status, chatapi.ErrorBody{Error: errText, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

const maxBodyBytes = 10 << 20

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return data, nil
}

func decodeJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func requireJSONContentType(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("invalid Content-Type header")
	}
	if mediaType != "application/json" {
		return fmt.Errorf("Content-Type must be application/json")
	}
	return nil
}
