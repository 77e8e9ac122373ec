// Package mcp exposes the operation catalog as Model Context Protocol tools
// behind the admission middleware.
package mcp

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"paygate/internal/core/domain"
	"paygate/internal/core/ports"
	"paygate/internal/tools"
	"paygate/pkg/apperror"
	"paygate/pkg/protocol"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// Server registers every catalog tool on an MCP server. Each call runs
// through the configured middlewares before reaching the tool.
type Server struct {
	server  *mcpsdk.Server
	catalog *tools.Catalog
	prices  ports.PricePolicy
	chain   []ports.Middleware
	log     zerolog.Logger

	mu sync.Mutex // serializes tool registration
}

// NewServer creates the MCP server. The first middleware is outermost.
func NewServer(name, version string, catalog *tools.Catalog, prices ports.PricePolicy, log zerolog.Logger, mws ...ports.Middleware) *Server {
	s := &Server{
		server:  mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil),
		catalog: catalog,
		prices:  prices,
		chain:   mws,
		log:     log,
	}
	s.RefreshPrices()
	return s
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.server
	}, nil)
}

// RefreshPrices re-registers every tool with the prices currently in force,
// so listings follow a reloaded price table.
func (s *Server) RefreshPrices() {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.prices.Snapshot()
	for _, tool := range s.catalog.All() {
		s.server.AddTool(describe(tool, table), s.toolHandler(tool))
	}
	s.log.Debug().Int("tools", len(s.catalog.All())).Msg("mcp tools registered")
}

// describe builds the tool listing. Unpriced tools are listed without price
// metadata and rejected on call.
func describe(tool tools.Tool, table *domain.PriceTable) *mcpsdk.Tool {
	t := &mcpsdk.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: tool.InputSchema,
	}
	if p, ok := table.Lookup(tool.Name); ok {
		t.Meta = mcpsdk.Meta{
			protocol.MetaPrice: p.Amount.String(),
			protocol.MetaFree:  p.Free,
		}
		if p.Description != "" {
			t.Description = p.Description
		}
	}
	return t
}

func (s *Server) toolHandler(tool tools.Tool) mcpsdk.ToolHandler {
	handler := ports.Chain(tool.Handler, s.chain...)

	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		inv := &domain.Invocation{
			Operation: req.Params.Name,
			Arguments: req.Params.Arguments,
		}
		if req.Extra != nil {
			inv.Header = req.Extra.Header
		}
		inv.RequestID = requestID(req.Params.Meta.GetMeta(), inv.Header)

		result, err := handler(ctx, inv)
		if err != nil {
			return s.errorResult(inv, err), nil
		}
		return successResult(result), nil
	}
}

// requestID prefers the id in the call metadata over the transport header.
func requestID(meta map[string]any, header http.Header) string {
	if id, ok := meta[protocol.MetaRequestID].(string); ok && id != "" {
		return id
	}
	return header.Get(protocol.HeaderRequestID)
}

func successResult(result *domain.OperationResult) *mcpsdk.CallToolResult {
	out := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result.Text}},
	}
	if result.Structured != nil {
		out.StructuredContent = result.Structured
	}
	if result.Receipt != nil {
		out.Meta = mcpsdk.Meta{protocol.MetaReceipt: result.Receipt}
	}
	return out
}

func (s *Server) errorResult(inv *domain.Invocation, err error) *mcpsdk.CallToolResult {
	meta := mcpsdk.Meta{}

	var appErr *apperror.AppError
	var opErr *domain.OperationError
	switch {
	case errors.As(err, &opErr):
		appErr = apperror.ErrOperationFailed(opErr.Err)
		if opErr.Receipt != nil {
			meta[protocol.MetaReceipt] = opErr.Receipt
		}
	case errors.As(err, &appErr):
	default:
		s.log.Error().Err(err).Str("operation", inv.Operation).Msg("unclassified tool error")
		appErr = apperror.InternalError(err)
	}

	payload := ErrorPayload(appErr)
	meta[protocol.MetaError] = payload
	return &mcpsdk.CallToolResult{
		IsError:           true,
		Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: "[" + payload.Code + "] " + payload.Message}},
		StructuredContent: payload,
		Meta:              meta,
	}
}

// ErrorPayload converts an AppError to its wire form.
func ErrorPayload(e *apperror.AppError) protocol.ErrorPayload {
	return protocol.ErrorPayload{
		Code:      e.Code,
		Message:   e.Message,
		Phase:     string(e.Phase),
		Status:    e.HTTPStatus,
		Retryable: e.Retryable,
	}
}
