package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ClientConfig configures the A2A client
type ClientConfig struct {
	ServerURL      string        // e.g., "http://localhost:8080"
	Timeout        time.Duration // HTTP request timeout
	ReconnectDelay time.Duration // delay between ConnectWithRetry attempts
	MaxReconnects  int           // max attempts ConnectWithRetry makes before giving up (0 = unlimited)
	UserID         string        // User ID for requests
	PersonaID      string        // Persona ID for requests
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL:      "http://localhost:8080",
		Timeout:        120 * time.Second,
		ReconnectDelay: 5 * time.Second,
		MaxReconnects:  10,
		UserID:         "default-user",
		PersonaID:      "hannah",
	}
}

// Client manages A2A protocol communication with a conversational agent
// backend reachable over HTTP/JSON-RPC and SSE.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	agentCard  *AgentCard
	logger     zerolog.Logger

	mu        sync.RWMutex
	connected bool

	onStatusChange func(connected bool, agentCard *AgentCard)
	onError        func(err error)
}

// NewClient creates a new A2A client
func NewClient(cfg *ClientConfig, logger zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "a2a-client").Logger(),
	}
}

// SetStatusHandler sets the callback for connection status changes
func (c *Client) SetStatusHandler(handler func(connected bool, agentCard *AgentCard)) {
	c.onStatusChange = handler
}

// SetErrorHandler sets the callback for errors
func (c *Client) SetErrorHandler(handler func(err error)) {
	c.onError = handler
}

// Connect discovers the agent and establishes connection
func (c *Client) Connect(ctx context.Context) error {
	card, err := c.DiscoverAgent(ctx)
	if err != nil {
		c.setConnected(false, nil)
		return fmt.Errorf("failed to discover agent: %w", err)
	}

	c.mu.Lock()
	c.agentCard = card
	c.mu.Unlock()

	c.setConnected(true, card)
	c.logger.Info().
		Str("agent", card.Name).
		Str("version", card.Version).
		Str("protocol", card.ProtocolVersion).
		Msg("connected to agent backend")

	return nil
}

// ConnectWithRetry calls Connect repeatedly on config.ReconnectDelay until it
// succeeds, ctx is cancelled, or MaxReconnects attempts have been made
// (MaxReconnects <= 0 means retry forever). Each failed attempt is reported
// through the error handler set by SetErrorHandler, if any, so a caller can
// surface agent-backend outages without ConnectWithRetry itself blocking
// process startup.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	delay := c.config.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; c.config.MaxReconnects <= 0 || attempt <= c.config.MaxReconnects; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = c.Connect(ctx)
		if lastErr == nil {
			return nil
		}

		c.logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("delay", delay).Msg("agent backend connect failed, retrying")
		if c.onError != nil {
			c.onError(lastErr)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("giving up after %d connect attempts: %w", c.config.MaxReconnects, lastErr)
}

// DiscoverAgent fetches the agent card from the configured server URL
func (c *Client) DiscoverAgent(ctx context.Context) (*AgentCard, error) {
	url := c.config.ServerURL + "/.well-known/agent-card.json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("agent card request failed: %d - %s", resp.StatusCode, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}

	return &card, nil
}

// SendMessage sends a message and returns the response
func (c *Client) SendMessage(ctx context.Context, text string) (*Message, error) {
	return c.SendMessageWithOptions(ctx, text, SendMessageOptions{})
}

// SendMessageWithVision sends a message with optional vision data
func (c *Client) SendMessageWithVision(ctx context.Context, text, imageBase64, mimeType string) (*Message, error) {
	return c.SendMessageWithOptions(ctx, text, SendMessageOptions{ImageBase64: imageBase64, MimeType: mimeType})
}

// SendMessageWithOptions sends a message with configurable options,
// returning the agent's reply. If the response arrives as an SSE stream,
// only the final message is returned; SendMessageStreamWithOptions
// surfaces intermediate events to a caller that wants those.
func (c *Client) SendMessageWithOptions(ctx context.Context, text string, opts SendMessageOptions) (*Message, error) {
	rpcReq, personaID := c.buildRequest("message/send", text, opts)

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.Debug().
		Str("mode", opts.Mode).
		Str("personaId", personaID).
		Int("bodyLen", len(body)).
		Msg("sending message")

	resp, err := c.postJSONRPC(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") == "text/event-stream" {
		return c.parseSSEResponse(resp.Body)
	}

	return c.parseJSONRPCMessage(resp.Body)
}

// SendMessageStream sends a message and streams responses via callback
func (c *Client) SendMessageStream(ctx context.Context, text string, handler func(TaskEvent)) error {
	return c.SendMessageStreamWithOptions(ctx, text, SendMessageOptions{}, handler)
}

// SendMessageStreamWithVision sends a message with optional vision and streams responses
func (c *Client) SendMessageStreamWithVision(ctx context.Context, text, imageBase64, mimeType string, handler func(TaskEvent)) error {
	return c.SendMessageStreamWithOptions(ctx, text, SendMessageOptions{
		ImageBase64: imageBase64,
		MimeType:    mimeType,
	}, handler)
}

// SendMessageStreamWithOptions sends a message with configurable options and streams responses
func (c *Client) SendMessageStreamWithOptions(ctx context.Context, text string, opts SendMessageOptions, handler func(TaskEvent)) error {
	rpcReq, personaID := c.buildRequest("message/stream", text, opts)

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.Debug().
		Str("mode", opts.Mode).
		Str("personaId", personaID).
		Msg("streaming message")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// A streaming call has no natural upper bound, so it bypasses the
	// client's configured request timeout; ctx cancellation is what ends it.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		c.setConnected(false, nil)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.handleSSEStream(ctx, resp.Body, handler)
}

// buildRequest assembles the JSON-RPC request shared by the send and
// stream paths: persona resolution, vision-vs-text message shape, and the
// voice-mode metadata the server uses to route to the right executive.
func (c *Client) buildRequest(method, text string, opts SendMessageOptions) (JSONRPCRequest, string) {
	personaID := c.config.PersonaID
	if opts.Persona != "" {
		personaID = opts.Persona
	}

	metadata := map[string]any{
		"userId":    c.config.UserID,
		"personaId": personaID,
	}
	if opts.Mode != "" {
		metadata["mode"] = opts.Mode
	}

	var msg *Message
	if opts.ImageBase64 != "" {
		msg = NewVisionMessage("user", text, opts.ImageBase64, opts.MimeType, metadata)
	} else {
		msg = NewTextMessage("user", text, metadata)
	}

	return JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params: MessageSendParams{
			Message: msg,
			Mode:    opts.Mode,
		},
		ID: 1,
	}, personaID
}

func (c *Client) postJSONRPC(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setConnected(false, nil)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// parseJSONRPCMessage decodes a non-streaming JSON-RPC response body and
// extracts the agent's reply, trying the three shapes the A2A v0.3.0 Task
// response can take: result.status.message, result.message, or the last
// agent turn in result.history.
func (c *Client) parseJSONRPCMessage(body io.Reader) (*Message, error) {
	respBody, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Int("bodyLen", len(respBody)).
		Str("bodyPreview", truncateForLog(string(respBody), 500)).
		Msg("A2A raw response received")

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.logger.Error().Err(err).Str("body", string(respBody)).Msg("failed to parse JSON-RPC response")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if rpcResp.Error != nil {
		c.logger.Error().Int("code", rpcResp.Error.Code).Str("msg", rpcResp.Error.Message).Msg("JSON-RPC error from agent backend")
		return nil, fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	result, ok := rpcResp.Result.(map[string]any)
	if !ok {
		c.logger.Warn().Interface("result", rpcResp.Result).Msg("unexpected response format - no message found")
		return nil, fmt.Errorf("unexpected response format")
	}

	if status, ok := result["status"].(map[string]any); ok {
		if msgData, ok := status["message"].(map[string]any); ok {
			return c.parseMessageFromMap(msgData), nil
		}
	}
	if msgData, ok := result["message"].(map[string]any); ok {
		return c.parseMessageFromMap(msgData), nil
	}
	if history, ok := result["history"].([]any); ok {
		for i := len(history) - 1; i >= 0; i-- {
			if histItem, ok := history[i].(map[string]any); ok {
				if role, ok := histItem["role"].(string); ok && role == "agent" {
					return c.parseMessageFromMap(histItem), nil
				}
			}
		}
	}

	c.logger.Warn().Interface("result", rpcResp.Result).Msg("unexpected response format - no message found")
	return nil, fmt.Errorf("unexpected response format")
}

// parseSSEResponse parses SSE events and returns the final message
func (c *Client) parseSSEResponse(reader io.Reader) (*Message, error) {
	var finalMessage *Message

	err := c.handleSSEStream(context.Background(), reader, func(event TaskEvent) {
		if event.Final && event.Message != nil {
			finalMessage = event.Message
		}
	})

	if err != nil {
		return nil, err
	}

	if finalMessage == nil {
		return nil, fmt.Errorf("no final message received")
	}

	return finalMessage, nil
}

// handleSSEStream processes SSE events
func (c *Client) handleSSEStream(ctx context.Context, reader io.Reader, handler func(TaskEvent)) error {
	sse := NewSSEReader(reader)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		event, err := sse.ReadEvent()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("SSE read error: %w", err)
		}

		if event.Data == "" {
			continue
		}

		var taskEvent TaskEvent
		if err := json.Unmarshal([]byte(event.Data), &taskEvent); err != nil {
			c.logger.Warn().Err(err).Str("data", event.Data).Msg("failed to parse SSE event")
			continue
		}

		taskEvent.EventType = event.Event
		handler(taskEvent)

		if taskEvent.Final {
			return nil
		}
	}
}

// parseMessageFromMap converts a map to a Message
func (c *Client) parseMessageFromMap(data map[string]any) *Message {
	msg := &Message{}

	if role, ok := data["role"].(string); ok {
		msg.Role = role
	}

	if parts, ok := data["parts"].([]any); ok {
		for _, p := range parts {
			partMap, ok := p.(map[string]any)
			if !ok {
				continue
			}
			// A2A v0.3.0 uses "kind" not "type"
			partKind, _ := partMap["kind"].(string)
			switch partKind {
			case "text":
				text, _ := partMap["text"].(string)
				msg.Parts = append(msg.Parts, TextPart{Kind: "text", Text: text})
			case "data":
				if d, ok := partMap["data"].(map[string]any); ok {
					msg.Parts = append(msg.Parts, DataPart{Kind: "data", Data: d})
				}
			case "file":
				name, _ := partMap["name"].(string)
				mimeType, _ := partMap["mimeType"].(string)
				bytes, _ := partMap["bytes"].(string)
				msg.Parts = append(msg.Parts, FilePart{Kind: "file", Name: name, MimeType: mimeType, Bytes: bytes})
			}
		}
	}

	if metadata, ok := data["metadata"].(map[string]any); ok {
		msg.Metadata = metadata
	}

	return msg
}

// setConnected updates connection status and notifies handler
func (c *Client) setConnected(connected bool, card *AgentCard) {
	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	if card != nil {
		c.agentCard = card
	}
	c.mu.Unlock()

	if changed && c.onStatusChange != nil {
		c.onStatusChange(connected, card)
	}
}

// IsConnected returns current connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// GetAgentCard returns the current agent card
func (c *Client) GetAgentCard() *AgentCard {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agentCard
}

// SetPersonaID updates the persona ID for future messages
func (c *Client) SetPersonaID(personaID string) {
	c.mu.Lock()
	c.config.PersonaID = personaID
	c.mu.Unlock()
	c.logger.Info().Str("personaId", personaID).Msg("persona ID updated")
}

// UpdateServerURL updates the server URL for the client
func (c *Client) UpdateServerURL(url string) {
	c.mu.Lock()
	c.config.ServerURL = url
	c.mu.Unlock()
	c.logger.Info().Str("serverURL", url).Msg("server URL updated")
}

// GetServerURL returns the current server URL
func (c *Client) GetServerURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.ServerURL
}

// Close closes the client
func (c *Client) Close() error {
	c.setConnected(false, nil)
	return nil
}

// StreamingResponse contains streaming response data
type StreamingResponse struct {
	Text    string
	Delta   string
	IsFinal bool
	State   TaskState
	Message *Message
	Error   error
}

// SendMessageStreamChan sends a message and returns a channel of streaming responses
func (c *Client) SendMessageStreamChan(ctx context.Context, text string) (<-chan StreamingResponse, error) {
	return c.SendMessageStreamChanWithOptions(ctx, text, SendMessageOptions{Stream: true})
}

// SendMessageStreamChanWithOptions sends a message with options and returns a channel of streaming responses.
// If opts.Stream is true (or this method is called), streaming is used; the Stream field
// explicitly signals the intent to use SSE streaming for incremental response delivery.
func (c *Client) SendMessageStreamChanWithOptions(ctx context.Context, text string, opts SendMessageOptions) (<-chan StreamingResponse, error) {
	ch := make(chan StreamingResponse, 32)

	go func() {
		defer close(ch)

		var accumulatedText string

		err := c.SendMessageStreamWithOptions(ctx, text, opts, func(event TaskEvent) {
			resp := StreamingResponse{
				State:   event.State,
				IsFinal: event.Final,
				Message: event.Message,
			}

			if event.Message != nil {
				newText := event.Message.ExtractText()
				if len(newText) > len(accumulatedText) {
					resp.Delta = newText[len(accumulatedText):]
					accumulatedText = newText
				}
				resp.Text = newText
			}

			select {
			case ch <- resp:
			case <-ctx.Done():
				return
			}
		})

		if err != nil {
			select {
			case ch <- StreamingResponse{Error: err, IsFinal: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// truncateForLog truncates a string for logging purposes
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
