package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/clinrag/internal/domain/search/request"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server is the MCP server for clinrag.
type Server struct {
	retriever Retriever
	previewer Previewer
	defaults  request.Options
	maxK      int
	logger    *zap.Logger
	server    *mcp.Server
}

// NewServer registers the retrieval tool and, when previewer is non-nil, the chunking tool.
func NewServer(ret Retriever, prev Previewer, defaults request.Options, logger *zap.Logger) (*Server, error) {
	if ret == nil {
		return nil, ErrMissingRetriever
	}

	s := &Server{
		retriever: ret,
		previewer: prev,
		defaults:  defaults,
		maxK:      request.MaxK,
		logger:    logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "clinrag",
			Version: Version,
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// WithMaxK caps the k a tool caller may ask for.
func (s *Server) WithMaxK(k int) *Server {
	if k > 0 {
		s.maxK = k
	}
	return s
}

// Run serves over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("MCP server shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("MCP server starting", zap.String("addr", addr))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
