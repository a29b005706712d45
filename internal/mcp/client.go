// Package mcp is the protocol client for the vehicle's remote tool endpoint:
// a JSON-RPC request/response surface offering session, telemetry and command
// methods. It owns the session handle, the retry/backoff policy and the
// normalization of remote failures.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mcp-pilot/internal/logger"
	"mcp-pilot/internal/telemetry"
)

// Wire statuses for command.execute.
const (
	StatusAcked    = "acked"
	StatusRejected = "rejected"
)

// Wire states for command.status.
const (
	StatePending   = "pending"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateTimedOut  = "timed_out"
)

type Config struct {
	Endpoint string // HTTP URL of the tool endpoint
	PushURL  string // optional websocket URL for pushed command status

	AuthSecret string // when set, requests carry an HS256 bearer token
	ClientID   string

	CallTimeout        time.Duration
	StatusPollInterval time.Duration

	// Transient link errors are retried with exponential backoff up to the
	// attempt ceiling, then the call fails and the caller decides.
	RetryInitial     time.Duration
	RetryBackoff     float64
	RetryMaxAttempts int
}

// Client issues typed requests against the remote endpoint. It is safe for
// use from the orchestrator plus the status console.
type Client struct {
	cfg   Config
	http  *http.Client
	reqID atomic.Int64

	mu        sync.Mutex
	sessionID string
	push      *pushChannel
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Open acquires a session. The session is owned exclusively by the client and
// must be released with Close on every exit path.
func (c *Client) Open(ctx context.Context) error {
	var result struct {
		SessionID string `json:"session_id"`
	}
	params := map[string]any{"client_id": c.cfg.ClientID}
	if err := c.call(ctx, "session.open", params, &result); err != nil {
		return err
	}
	if result.SessionID == "" {
		return &RemoteError{Code: ErrLink, Method: "session.open", Detail: "empty session id"}
	}

	c.mu.Lock()
	c.sessionID = result.SessionID
	c.mu.Unlock()

	if c.cfg.PushURL != "" {
		push, err := dialPush(c.cfg.PushURL, c.authHeader())
		if err != nil {
			// Push is an optimization; polling still covers command status.
			logf("[mcp] push channel unavailable, falling back to polling: %v", err)
		} else {
			c.mu.Lock()
			c.push = push
			c.mu.Unlock()
		}
	}
	return nil
}

// Close releases the session. Idempotent; a second call is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	sessionID := c.sessionID
	push := c.push
	c.sessionID = ""
	c.push = nil
	c.mu.Unlock()

	if push != nil {
		push.close()
	}
	if sessionID == "" {
		return nil
	}
	return c.call(ctx, "session.close", map[string]any{"session_id": sessionID}, nil)
}

// TelemetryGet polls one vehicle snapshot.
func (c *Client) TelemetryGet(ctx context.Context) (telemetry.Vehicle, error) {
	sessionID, err := c.session()
	if err != nil {
		return telemetry.Vehicle{}, err
	}

	var result struct {
		Lat       float64 `json:"lat"`
		Lon       float64 `json:"lon"`
		Alt       float64 `json:"alt"`
		Battery   float64 `json:"battery"`
		Armed     bool    `json:"armed"`
		Mode      string  `json:"mode"`
		Timestamp string  `json:"timestamp"`
	}
	if err := c.call(ctx, "telemetry.get", map[string]any{"session_id": sessionID}, &result); err != nil {
		return telemetry.Vehicle{}, err
	}

	ts, err := time.Parse(time.RFC3339, result.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	return telemetry.Vehicle{
		Lat:       result.Lat,
		Lon:       result.Lon,
		AltM:      result.Alt,
		Battery:   result.Battery,
		Armed:     result.Armed,
		Mode:      result.Mode,
		Timestamp: ts,
	}, nil
}

// ExecuteRequest is the wire form of one command.
type ExecuteRequest struct {
	ActionType    string
	Params        map[string]any
	CorrelationID string
}

// ExecuteResult is the synchronous ack for a command. Completion arrives
// asynchronously via AwaitCompletion.
type ExecuteResult struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Execute dispatches one command. A remote rejection is surfaced as
// ErrRejected and is never retried here.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	sessionID, err := c.session()
	if err != nil {
		return ExecuteResult{}, err
	}

	params := map[string]any{
		"session_id":     sessionID,
		"action_type":    req.ActionType,
		"params":         req.Params,
		"correlation_id": req.CorrelationID,
	}
	var result ExecuteResult
	if err := c.call(ctx, "command.execute", params, &result); err != nil {
		return ExecuteResult{}, err
	}
	if result.Status == StatusRejected {
		return result, &RemoteError{Code: ErrRejected, Method: "command.execute", Detail: result.Detail}
	}
	return result, nil
}

// AwaitCompletion blocks until the command reaches a terminal state or ctx
// expires. Status is polled at the configured cadence; when the push channel
// is connected, pushed states short-circuit the wait.
func (c *Client) AwaitCompletion(ctx context.Context, correlationID string) (string, error) {
	c.mu.Lock()
	push := c.push
	c.mu.Unlock()

	var pushed <-chan string
	if push != nil {
		pushed = push.watch(correlationID)
		defer push.forget(correlationID)
	}

	ticker := time.NewTicker(c.cfg.StatusPollInterval)
	defer ticker.Stop()

	for {
		state, err := c.commandStatus(ctx, correlationID)
		if err != nil {
			return "", err
		}
		if state != StatePending {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return "", normalize("command.status", ctx.Err())
		case state := <-pushed:
			if state != StatePending {
				return state, nil
			}
		case <-ticker.C:
		}
	}
}

func (c *Client) commandStatus(ctx context.Context, correlationID string) (string, error) {
	var result struct {
		State  string `json:"state"`
		Detail string `json:"detail"`
	}
	params := map[string]any{"correlation_id": correlationID}
	if err := c.call(ctx, "command.status", params, &result); err != nil {
		return "", err
	}
	return result.State, nil
}

func (c *Client) session() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		return "", &RemoteError{Code: ErrLink, Method: "session", Detail: "no open session"}
	}
	return c.sessionID, nil
}

// call runs one JSON-RPC method with bounded per-attempt timeouts and
// exponential backoff across transient link failures.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	delay := c.cfg.RetryInitial
	attempts := c.cfg.RetryMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return normalize(method, err)
		}

		err := c.attempt(ctx, method, params, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRejected) {
			// Definitive remote answer; retrying cannot help.
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return normalize(method, ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * c.cfg.RetryBackoff)
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, method string, params any, out any) error {
	callCtx := ctx
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return normalize(method, err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return normalize(method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.authHeader() {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return normalize(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{Code: ErrLink, Method: method, Detail: fmt.Sprintf("http status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return normalize(method, err)
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return &RemoteError{Code: ErrLink, Method: method, Detail: fmt.Sprintf("bad response: %v", err)}
	}
	if rpcResp.Error != nil {
		return &RemoteError{
			Code:   ErrRejected,
			Method: method,
			Detail: fmt.Sprintf("remote error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message),
		}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return &RemoteError{Code: ErrLink, Method: method, Detail: fmt.Sprintf("bad result: %v", err)}
		}
	}
	return nil
}

// authHeader mints a short-lived HS256 bearer token when a secret is
// configured; empty otherwise.
func (c *Client) authHeader() http.Header {
	h := http.Header{}
	if c.cfg.AuthSecret == "" {
		return h
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   c.cfg.ClientID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Second)),
	})
	signed, err := token.SignedString([]byte(c.cfg.AuthSecret))
	if err != nil {
		logf("[mcp] token signing failed: %v", err)
		return h
	}
	h.Set("Authorization", "Bearer "+signed)
	return h
}

func logf(format string, args ...any) {
	if logger.Log != nil {
		logger.Log.Printf(format, args...)
	}
}
