// Package handlers serves the employee view model: a gRPC server carrying the
// standard health service, and an HTTP server whose grpc-gateway mux exposes
// the view model as JSON and proxies /healthz to the gRPC health check.
package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server holds references to both a gRPC server and an HTTP server.
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server
	healthConn   *grpc.ClientConn
	logger       *zap.Logger
	grpcEndpoint string
	grpcTarget   string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	opts := append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, grpcOpts...)
	s := &Server{
		grpcServer:   grpc.NewServer(opts...),
		httpServer:   &http.Server{ReadHeaderTimeout: 10 * time.Second},
		health:       health.NewServer(),
		logger:       logger.Named("server"),
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		grpcTarget:   fmt.Sprintf("localhost:%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	return s
}

// RegisterHTTPGateway builds the HTTP mux: the employee routes plus /healthz,
// which is answered by the gRPC health service through a client connection
// dialled with dialOpts.
func (s *Server) RegisterHTTPGateway(_ context.Context, dialOpts []grpc.DialOption, h *EmployeeHandler) error {
	conn, err := grpc.NewClient(s.grpcTarget, dialOpts...)
	if err != nil {
		return fmt.Errorf("dial gRPC endpoint: %w", err)
	}

	mux := newGatewayMux(healthpb.NewHealthClient(conn), s.logger)
	if err := h.Register(mux); err != nil {
		_ = conn.Close()
		return err
	}

	s.healthConn = conn
	s.httpServer.Handler = mux
	s.httpServer.Addr = s.httpEndpoint
	return nil
}

func newGatewayMux(healthClient healthpb.HealthClient, logger *zap.Logger) *runtime.ServeMux {
	return runtime.NewServeMux(
		runtime.WithHealthzEndpoint(healthClient),
		runtime.WithMiddlewares(requestLogger(logger)),
	)
}

// requestLogger logs every request with its latency at debug level.
func requestLogger(logger *zap.Logger) runtime.Middleware {
	return func(next runtime.HandlerFunc) runtime.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
			start := time.Now()
			next(w, r, params)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("took", time.Since(start)),
			)
		}
	}
}

// Start runs the gRPC and HTTP servers concurrently, returning on the first error.
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(2)
	errChan := make(chan error, 2)

	go func() {
		defer wg.Done()
		s.logger.Info("Starting gRPC server", zap.String("endpoint", s.grpcEndpoint))
		lis, err := net.Listen("tcp", s.grpcEndpoint)
		if err != nil {
			errChan <- fmt.Errorf("gRPC listen error: %w", err)
			return
		}
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if err := s.grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC serve error: %w", err)
		}
	}()

	go func() {
		defer wg.Done()
		s.logger.Info("Starting HTTP server", zap.String("endpoint", s.httpEndpoint))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP serve error: %w", err)
		}
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

// Stop gracefully shuts down both gRPC and HTTP servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	s.grpcServer.GracefulStop()
	if s.healthConn != nil {
		if err := s.healthConn.Close(); err != nil {
			s.logger.Warn("Health client close error", zap.Error(err))
		}
	}

	s.logger.Info("Servers stopped")
}
