package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/bridge-core/core/events"
	"github.com/koscakluka/bridge-core/core/voiceagents"
)

// Session owns one outbound connection to the conversational agent
// transport. It is created against a signed URL and never reconnects: an
// ended session stays ended.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex

	closed     bool
	closedOnce sync.Once

	options voiceagents.SessionOptions
}

// DialSession opens an agent session against the issued signed URL and sends
// the conversation initiation payload before anything else. Incoming messages
// are processed on a background goroutine until the connection ends.
func DialSession(ctx context.Context, signedURL string, opts ...voiceagents.SessionOption) (*Session, error) {
	ctx, span := tracer.Start(ctx, "dial agent session")
	defer span.End()

	session := &Session{}
	for _, opt := range opts {
		opt(&session.options)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to agent: %w", err)
	}
	session.conn = conn

	// The initiation payload must be the first message on the wire.
	if err := session.sendWebsocketMessage(newInitiationPayload(session.options)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send conversation initiation: %w", err)
	}
	span.AddEvent("conversation initiation sent")

	go session.processIncomingMessages()

	return session, nil
}

// SendUserAudio forwards one base64 chunk of caller audio to the agent. Audio
// arriving after the session ended is dropped silently; the call leg can
// outlive the agent without that being an error.
func (s *Session) SendUserAudio(audio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return nil
	}

	if err := s.conn.WriteJSON(userAudioChunk{UserAudioChunk: audio}); err != nil {
		return fmt.Errorf("failed to send user audio to agent: %w", err)
	}
	return nil
}

// Close ends the session. It is safe to call more than once and after the
// remote side already ended the conversation.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeWriteDeadline())
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close agent connection: %w", err)
	}
	return nil
}

func (s *Session) processIncomingMessages() {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closedLocally := s.closed
			s.closed = true
			s.mu.Unlock()

			if !closedLocally {
				// The remote side ended the connection; release the socket.
				_ = s.conn.Close()
			}

			if !closedLocally && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("agent websocket read error", "error", err)
				s.finish(err)
				return
			}
			s.finish(nil)
			return
		}

		s.processMessage(msg)
	}
}

func (s *Session) processMessage(msg []byte) {
	var parsedMsg agentMessage
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		// Recovered locally: the message is dropped, the session continues.
		logger.Warn("failed to unmarshal agent message", "error", err)
		return
	}

	switch parsedMsg.Type {
	case "audio":
		if chunk, ok := parsedMsg.audioChunk(); ok {
			if s.options.AudioCallback != nil {
				s.options.AudioCallback(events.NewAgentAudioChunk(chunk))
			}
		} else {
			logger.Warn("agent audio message carried no chunk")
		}

	case "interruption":
		if s.options.InterruptionCallback != nil {
			s.options.InterruptionCallback(events.NewAgentInterruption())
		}

	case "ping":
		// Keepalive internal to the adapter; the coordinator never sees it.
		if parsedMsg.PingEvent == nil {
			logger.Warn("agent ping carried no event id")
			return
		}
		if err := s.sendWebsocketMessage(pongMsg(parsedMsg.PingEvent.EventID)); err != nil {
			logger.Warn("failed to answer agent ping", "error", err)
		}

	case "agent_response":
		if s.options.AgentTranscriptCallback != nil && parsedMsg.AgentResponseEvent != nil {
			s.options.AgentTranscriptCallback(events.NewAgentTranscript(parsedMsg.AgentResponseEvent.AgentResponse))
		}

	case "user_transcript":
		if s.options.UserTranscriptCallback != nil && parsedMsg.UserTranscriptionEvent != nil {
			s.options.UserTranscriptCallback(events.NewUserTranscript(parsedMsg.UserTranscriptionEvent.UserTranscript))
		}

	case "conversation_initiation_metadata":
		if s.options.MetadataCallback != nil {
			s.options.MetadataCallback(events.NewInitiationMetadata())
		}

	default:
		logger.Debug("unhandled agent message type", "type", parsedMsg.Type)
	}
}

func (s *Session) finish(err error) {
	s.closedOnce.Do(func() {
		if s.options.ClosedCallback != nil {
			s.options.ClosedCallback(err)
		}
	})
}

func (s *Session) sendWebsocketMessage(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return fmt.Errorf("agent connection closed")
	}

	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to agent websocket: %w", err)
	}
	return nil
}
