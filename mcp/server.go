// Package mcp exposes the cratedoc query service as Model Context Protocol
// tools.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fwojciec/cratedoc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server serves cratedoc tools over MCP.
type Server struct {
	svc          cratedoc.Service
	server       *mcp.Server
	contextLines int
}

// Option configures a Server.
type Option func(*Server)

// WithContextLines sets the source context used when a call gives none.
func WithContextLines(n int) Option {
	return func(s *Server) {
		s.contextLines = n
	}
}

// NewServer creates a Server over svc reporting version to clients.
func NewServer(svc cratedoc.Service, version string, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, cratedoc.Errorf(cratedoc.EINVALID, "mcp: service required")
	}
	s := &Server{
		svc:          svc,
		server:       mcp.NewServer(&mcp.Implementation{Name: "cratedoc", Version: version}, nil),
		contextLines: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// RunHTTP serves streamable HTTP on addr until ctx is done.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// toolError carries an error report as the text of a failed tool call.
type toolError struct {
	report *cratedoc.ErrorReport
}

func (e *toolError) Error() string {
	b, err := json.Marshal(e.report)
	if err != nil {
		return e.report.Message
	}
	return string(b)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	return &toolError{report: cratedoc.NewErrorReport(err)}
}
