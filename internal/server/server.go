package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"strivebot/internal/assistant"
	"strivebot/internal/config"
	"strivebot/internal/models"
	"strivebot/internal/stream"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second

	// streamTimeout bounds one full streamed response; the server write
	// timeout must outlast it or long streams get cut off.
	streamTimeout = 2 * time.Minute
	writeTimeout  = streamTimeout + 30*time.Second

	flushDelay = 10 * time.Millisecond
)

// upstreamErrorMessage is the generic body returned when the provider
// fails before any frame has been written.
const upstreamErrorMessage = "Failed to get AI response"

type Server struct {
	cfg     config.Config
	source  *assistant.Source
	app     *echo.Echo
	address string

	// overridable in tests to avoid pacing delays
	flushDelay time.Duration
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, source *assistant.Source) (*Server, error) {
	if source == nil {
		return nil, errors.New("completion source must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	srv := &Server{
		cfg:        cfg,
		source:     source,
		app:        e,
		address:    fmt.Sprintf(":%d", cfg.Server.Port),
		flushDelay: flushDelay,
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port)
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/api/assistant", s.handleAssistant)
	s.app.POST("/api/chatbot", s.handleChatbot)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type assistantRequest struct {
	Messages []models.ConversationTurn `json:"messages"`
}

type chatbotRequest struct {
	Messages          []models.ConversationTurn `json:"messages"`
	IsNewConversation bool                      `json:"isNewConversation"`
}

func (s *Server) handleAssistant(c echo.Context) error {
	var req assistantRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if len(req.Messages) == 0 {
		return requestError{Status: http.StatusBadRequest, Message: "messages must not be empty"}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), streamTimeout)
	defer cancel()

	st, err := s.source.Assistant(ctx, req.Messages)
	if err != nil {
		return toHTTPError(err)
	}
	defer st.Close()

	fwd, err := s.beginStream(c, stream.SentencePolicy{})
	if err != nil {
		return err
	}

	if err := fwd.Run(ctx, st); err != nil {
		// Headers are committed; nothing to report to the client.
		slog.Error("assistant stream ended abnormally", "err", err)
	}
	return nil
}

func (s *Server) handleChatbot(c echo.Context) error {
	var req chatbotRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if len(req.Messages) == 0 {
		return requestError{Status: http.StatusBadRequest, Message: "messages must not be empty"}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), streamTimeout)
	defer cancel()

	title, st, err := s.source.Chatbot(ctx, req.Messages, req.IsNewConversation)
	if err != nil {
		return toHTTPError(err)
	}
	defer st.Close()

	fwd, err := s.beginStream(c, stream.WordPolicy{})
	if err != nil {
		return err
	}

	if title != "" {
		if err := fwd.AnnounceTitle(title); err != nil {
			slog.Error("failed to announce title", "err", err)
			return nil
		}
	}

	if err := fwd.Run(ctx, st); err != nil {
		slog.Error("chatbot stream ended abnormally", "err", err)
	}
	return nil
}

// beginStream commits the event-stream response headers and returns a
// forwarder bound to the connection.
func (s *Server) beginStream(c echo.Context, policy stream.Policy) (*stream.Forwarder, error) {
	writer := c.Response().Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		slog.Error("http writer does not support flushing")
		return nil, requestError{
			Status:  http.StatusInternalServerError,
			Message: "server does not support streaming responses",
		}
	}

	header := c.Response().Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")

	c.Response().WriteHeader(http.StatusOK)

	return stream.NewForwarder(writer, policy,
		stream.WithFlusher(flusher),
		stream.WithDelay(s.flushDelay),
	), nil
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid JSON payload: %v", err),
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
		}
	}
	return nil
}

type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, errorBody{Error: message})
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		// Streaming already started; the status line cannot change.
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message)
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = writeError(c, httpErr.Code, fmt.Sprintf("%v", httpErr.Message))
		return
	}

	_ = writeError(c, http.StatusInternalServerError, "internal server error")
}

// toHTTPError maps pre-stream upstream failures to the generic 500 body.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	slog.Error("upstream request failed", "err", err)
	return requestError{
		Status:  http.StatusInternalServerError,
		Message: upstreamErrorMessage,
	}
}

func printStartupBanner(port int) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("strivebot backend ready")
	fmt.Printf("Listening on http://%s:%d\n", host, port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  POST /api/assistant")
	fmt.Println("  POST /api/chatbot")
	fmt.Printf("Example:\n  curl -N http://%s:%d/api/chatbot -H 'Content-Type: application/json' -d '{\"messages\":[{\"role\":\"user\",\"content\":\"How do I focus better?\"}],\"isNewConversation\":true}'\n\n", host, port)
}
