package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"creditledger/native/credit"
	"creditledger/observability"
)

const (
	jsonRPCVersion         = "2.0"
	defaultMaxRequestBytes = 1 << 20 // 1 MiB
	shutdownTimeout        = 10 * time.Second
)

// ServerConfig configures the JSON-RPC front end of the ledger.
type ServerConfig struct {
	JWT             JWTConfig
	RateLimit       RateLimit
	AllowedOrigins  []string
	MaxRequestBytes int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

type observer interface {
	Observe(method string, code int, duration time.Duration)
	RecordThrottle(reason string)
}

type Server struct {
	engine  *credit.Engine
	cfg     ServerConfig
	logger  *slog.Logger
	auth    *Authenticator
	limiter *RateLimiter
	metrics observer
	methods map[string]method
}

// NewServer wires the JSON-RPC surface onto engine.
func NewServer(engine *credit.Engine, cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("credit engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	auth, err := NewAuthenticator(cfg.JWT, logger)
	if err != nil {
		return nil, err
	}
	metrics := observability.RPC()
	limiter, err := NewRateLimiter(cfg.RateLimit, metrics)
	if err != nil {
		return nil, err
	}
	s := &Server{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		auth:    auth,
		limiter: limiter,
		metrics: metrics,
	}
	s.methods = s.creditMethods()
	return s, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(cors(s.cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(rpc chi.Router) {
		rpc.Use(s.limiter.Middleware)
		rpc.Use(s.auth.Middleware)
		rpc.Post("/", s.handle)
		rpc.Post("/rpc", s.handle)
	})
	return otelhttp.NewHandler(r, "creditd.rpc")
}

// ListenAndServe serves until ctx is cancelled and then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("JSON-RPC server listening", slog.String("listen", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown rpc server: %w", err)
		}
		return nil
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: nullID(id), Error: errObj})
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	encoded, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "failed to encode result", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: nullID(id), Result: encoded})
}

func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// handle decodes one JSON-RPC request and dispatches it to the method table.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	m, ok := s.methods[req.Method]
	if !ok {
		s.metrics.Observe("unknown", codeMethodNotFound, time.Since(start))
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}

	c := &call{params: req.Params}
	c.caller, c.authenticated = callerFrom(r.Context())
	if m.requiresCaller && !c.authenticated {
		s.metrics.Observe(req.Method, CodeUnauthorized, time.Since(start))
		writeError(w, http.StatusUnauthorized, req.ID, CodeUnauthorized, "authentication required", nil)
		return
	}

	result, err := m.fn(r.Context(), c)
	if err != nil {
		moduleErr := wrapError(err)
		s.metrics.Observe(req.Method, moduleErr.Code, time.Since(start))
		level := slog.LevelDebug
		if moduleErr.HTTPStatus >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "rpc call failed",
			slog.String("method", req.Method),
			slog.String("requestId", requestIDFrom(r.Context())),
			slog.Int("code", moduleErr.Code),
			slog.Any("error", err))
		writeError(w, moduleErr.HTTPStatus, req.ID, moduleErr.Code, moduleErr.Message, moduleErr.Data)
		return
	}
	s.metrics.Observe(req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}
