// Package client is a paying caller for the gateway: it lists priced
// operations and invokes them with wallet credentials attached.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"paygate/pkg/protocol"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config configures a Client.
type Config struct {
	Endpoint     string // MCP endpoint, e.g. http://localhost:8080/mcp
	Credentials  Credentials
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client // its Transport is wrapped with the credentials
	Logger       *zerolog.Logger
}

// Operation is one priced operation offered by the gateway.
type Operation struct {
	Name        string
	Description string
	InputSchema any
	Price       decimal.Decimal
	Free        bool
	Priced      bool // false when the gateway lists the tool without a price
}

// Receipt describes the payment taken for a call.
type Receipt struct {
	TransferID     string          `json:"transfer_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	PayerID        string          `json:"payer_id"`
	PayeeID        string          `json:"payee_id"`
	Operation      string          `json:"operation"`
	Amount         decimal.Decimal `json:"amount"`
	Free           bool            `json:"free"`
	Replayed       bool            `json:"replayed"`
	Refunded       bool            `json:"refunded"`
}

// Result is the outcome of a successful call.
type Result struct {
	Text       string
	Structured any
	Receipt    *Receipt
	RequestID  string
}

// session is the part of *mcpsdk.ClientSession the client uses.
type session interface {
	CallTool(ctx context.Context, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error)
	ListTools(ctx context.Context, params *mcpsdk.ListToolsParams) (*mcpsdk.ListToolsResult, error)
	Close() error
}

// Client invokes operations over one MCP session.
type Client struct {
	session session
	cfg     Config
	log     zerolog.Logger
}

// Dial connects to the gateway.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("client: endpoint is required")
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		*httpClient = *cfg.HTTPClient
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient.Transport = &authRoundTripper{creds: cfg.Credentials, base: base}

	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "paygate-client", Version: "1.0.0"}, nil)
	session, err := mcpClient.Connect(ctx, &mcpsdk.StreamableClientTransport{
		Endpoint:   cfg.Endpoint,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", cfg.Endpoint, err)
	}
	return &Client{session: session, cfg: cfg, log: log}, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.session.Close()
}

// ListOperations returns the gateway's operations in listing order.
func (c *Client) ListOperations(ctx context.Context) ([]Operation, error) {
	var ops []Operation
	params := &mcpsdk.ListToolsParams{}
	for {
		res, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("client: list tools: %w", err)
		}
		for _, tool := range res.Tools {
			ops = append(ops, toOperation(tool))
		}
		if res.NextCursor == "" {
			return ops, nil
		}
		params = &mcpsdk.ListToolsParams{Cursor: res.NextCursor}
	}
}

func toOperation(tool *mcpsdk.Tool) Operation {
	op := Operation{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: tool.InputSchema,
	}
	meta := tool.Meta.GetMeta()
	if raw, ok := meta[protocol.MetaPrice].(string); ok {
		if price, err := decimal.NewFromString(raw); err == nil {
			op.Price = price
			op.Priced = true
		}
	}
	op.Free, _ = meta[protocol.MetaFree].(bool)
	return op
}

// Invoke calls an operation. Rejections are returned as *PaymentError and
// failures of the paid operation as *OperationError. Retries reuse the
// request id, so the call is charged at most once.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	requestID := uuid.NewString()
	params := &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
		Meta:      mcpsdk.Meta{protocol.MetaRequestID: requestID},
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c.log.Debug().Err(lastErr).Str("operation", name).Str("request_id", requestID).Int("attempt", attempt+1).Msg("retrying call")
		}

		res, err := c.session.CallTool(ctx, params)
		if err != nil {
			lastErr = fmt.Errorf("client: call %s: %w", name, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		result, err := decodeResult(name, requestID, res)
		if err == nil {
			return result, nil
		}
		lastErr = err
		var payErr *PaymentError
		if !errors.As(err, &payErr) || !payErr.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func decodeResult(name, requestID string, res *mcpsdk.CallToolResult) (*Result, error) {
	meta := res.Meta.GetMeta()
	var receipt *Receipt
	if raw, ok := meta[protocol.MetaReceipt]; ok {
		receipt = &Receipt{}
		if err := remarshal(raw, receipt); err != nil {
			receipt = nil
		}
	}

	if !res.IsError {
		return &Result{
			Text:       textOf(res),
			Structured: res.StructuredContent,
			Receipt:    receipt,
			RequestID:  requestID,
		}, nil
	}

	var payload protocol.ErrorPayload
	raw, ok := meta[protocol.MetaError]
	if !ok {
		raw = res.StructuredContent
	}
	if raw == nil || remarshal(raw, &payload) != nil || payload.Code == "" {
		return nil, &OperationError{Operation: name, Message: textOf(res), Receipt: receipt}
	}
	if payload.Code == protocol.CodeOperationFailed {
		return nil, &OperationError{Operation: name, Message: payload.Message, Receipt: receipt}
	}
	return nil, &PaymentError{Operation: name, Payload: payload}
}

func textOf(res *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
