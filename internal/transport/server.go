package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexstream/internal/conversation"
	"github.com/normanking/cortexstream/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ControllerFactory builds a fresh conversation.Controller for one newly
// connected client, wired to send its output through sender.
type ControllerFactory func(sender conversation.Sender) *conversation.Controller

// Server upgrades incoming HTTP connections to websockets and runs one
// conversation controller per connection.
type Server struct {
	newController ControllerFactory
	logger        zerolog.Logger
}

// NewServer builds a Server. newController is called once per accepted
// connection.
func NewServer(newController ControllerFactory, logger zerolog.Logger) *Server {
	return &Server{newController: newController, logger: logger}
}

// RegisterRoutes wires the websocket endpoint into mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/client-ws", s.handleWS)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newClientConn(ws, s.logger)
	go conn.writePump()
	defer conn.close()

	controller := s.newController(conn)
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("client connected")
	conn.readLoop(controller)
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("client disconnected")
}

// clientConn is the conversation.Sender for one websocket connection. A
// single writer goroutine owns the socket's write side; every Send* method
// only ever pushes onto the outbound channel, so concurrent audio
// deliveries and control messages from different goroutines never race on
// the underlying connection.
type clientConn struct {
	ws     *websocket.Conn
	out    chan OutboundMessage
	done   chan struct{}
	logger zerolog.Logger
}

func newClientConn(ws *websocket.Conn, logger zerolog.Logger) *clientConn {
	return &clientConn{
		ws:     ws,
		out:    make(chan OutboundMessage, 64),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *clientConn) writePump() {
	for {
		select {
		case msg, ok := <-c.out:
			if !ok {
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Warn().Err(err).Msg("websocket write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *clientConn) enqueue(msg OutboundMessage) {
	select {
	case c.out <- msg:
	case <-c.done:
	}
}

func (c *clientConn) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	c.ws.Close()
}

func (c *clientConn) SendControl(text string) {
	c.enqueue(OutboundMessage{Type: "control", Text: text})
}

func (c *clientConn) SendFullText(text string) {
	c.enqueue(OutboundMessage{Type: "full-text", Text: text})
}

func (c *clientConn) SendTranscription(text, originalText string, isStopWord bool) {
	stop := isStopWord
	c.enqueue(OutboundMessage{
		Type:         "user-input-transcription",
		Text:         text,
		OriginalText: originalText,
		IsStopWord:   &stop,
	})
}

func (c *clientConn) SendAudio(payload pipeline.AudioPayload) {
	msg := OutboundMessage{
		Type:        "audio",
		Volumes:     payload.Volumes,
		SliceLength: payload.SliceLengthMs,
		DisplayText: displayTextWire(payload.DisplayText),
		Actions:     actionsWire(payload.Actions),
		Forwarded:   false,
		MergeInfo:   mergeInfoWire(payload.MergeInfo),
	}
	if len(payload.Audio) > 0 {
		msg.Audio = base64.StdEncoding.EncodeToString(payload.Audio)
	}
	c.enqueue(msg)
}

func (c *clientConn) SendSynthComplete() {
	c.enqueue(OutboundMessage{Type: "backend-synth-complete"})
}

func (c *clientConn) SendError(message string) {
	c.enqueue(OutboundMessage{Type: "error", Message: message})
}

// readLoop blocks reading client frames until the connection closes,
// dispatching each one to controller.
func (c *clientConn) readLoop(controller *conversation.Controller) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.handleInbound(controller, data)
	}
}

func (c *clientConn) handleInbound(controller *conversation.Controller, data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn().Err(err).Msg("malformed client message")
		return
	}

	// Turn lifetime cancellation is owned by the controller itself
	// (startTurn / interruptActive), not by this per-message context.
	ctx := context.Background()
	switch msg.Type {
	case "text-input":
		controller.HandleTextInput(ctx, msg.Text, firstImage(msg.Images), false)

	case "mic-audio-end":
		audio, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("malformed mic-audio-end payload")
			return
		}
		controller.HandleAudioInput(ctx, audio, false)

	case "ai-speak-signal":
		controller.HandleSpeakSignal(ctx, msg.Text)

	case "interrupt-signal":
		controller.HandleInterrupt(msg.Text)

	case "frontend-playback-complete":
		controller.HandlePlaybackComplete()

	default:
		c.logger.Debug().Str("type", msg.Type).Msg("unhandled client message type")
	}
}

// firstImage converts the first attached image, if any, into the model
// client's vision attachment shape. Only one image per turn is forwarded;
// the spec's data model carries a single active image per text-input.
func firstImage(images []ImageWire) *conversation.Image {
	if len(images) == 0 {
		return nil
	}
	img := images[0]
	return &conversation.Image{
		Base64:   RawImageData(img),
		MimeType: ResolveImageMimeType(img),
	}
}
