package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"LedgerChat/internal/config"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Server is the HTTP front of the chat service
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(cfg config.ServerConfig, chat ChatService, logger *slog.Logger, tracer trace.Tracer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(AccessLog(logger))
	router.Use(CORS(cfg.CORSOrigin))
	router.Use(Trace(tracer))

	NewHTTPHandler(chat).RegisterRoutes(router)
	return router
}

// NewServer creates a server listening on cfg.Port
func NewServer(cfg config.ServerConfig, chat ChatService, logger *slog.Logger, tracer trace.Tracer) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewRouter(cfg, chat, logger, tracer),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run blocks serving requests until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("server running", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
