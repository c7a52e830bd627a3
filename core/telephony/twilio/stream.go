package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/bridge-core/core/events"
	"github.com/koscakluka/bridge-core/core/telephony"
)

// MediaStream owns one inbound media-stream connection from the telephony
// transport. Frames are JSON, tagged by an event field.
type MediaStream struct {
	conn *websocket.Conn
	mu   sync.Mutex

	closed bool

	options telephony.StreamOptions
}

// NewMediaStream wraps an accepted media-stream connection. The stream does
// nothing until [MediaStream.Listen] is called.
func NewMediaStream(conn *websocket.Conn) *MediaStream {
	return &MediaStream{conn: conn}
}

// Listen reads and dispatches frames until the connection ends. It blocks;
// run it from the connection's handler. The returned error is nil when the
// remote side closed normally.
func (s *MediaStream) Listen(ctx context.Context, opts ...telephony.StreamOption) error {
	for _, opt := range opts {
		opt(&s.options)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()

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

			if closedLocally || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("call leg read failed: %w", err)
		}

		s.processFrame(msg)
	}
}

func (s *MediaStream) processFrame(msg []byte) {
	var frame streamFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		// Recovered locally: the frame is dropped, the connection survives.
		logger.Warn("failed to unmarshal call leg frame", "error", err)
		return
	}

	switch frame.Event {
	case "connected":
		// Protocol preamble, nothing to bind yet.

	case "start":
		if frame.Start == nil {
			logger.Warn("call leg start frame carried no start block")
			return
		}
		if s.options.StartCallback != nil {
			s.options.StartCallback(events.NewCallStarted(
				frame.Start.StreamSID,
				frame.Start.CallSID,
				frame.Start.CustomParameters,
			))
		}

	case "media":
		if frame.Media == nil {
			return
		}
		if s.options.MediaCallback != nil {
			s.options.MediaCallback(events.NewCallMedia(frame.Media.Payload))
		}

	case "stop":
		if s.options.StopCallback != nil {
			s.options.StopCallback(events.NewCallStopped())
		}

	default:
		logger.Debug("unhandled call leg event", "event", frame.Event)
	}
}

// SendMedia emits one media frame toward the call leg with the bound stream
// identifier. Audio is passed through verbatim, no transcoding.
func (s *MediaStream) SendMedia(streamSID, payload string) error {
	return s.sendWebsocketMessage(outboundFrame{
		Event:     "media",
		StreamSID: streamSID,
		Media:     &mediaPayload{Payload: payload},
	})
}

// SendClear instructs the telephony side to flush its outbound audio buffer,
// used for barge-in.
func (s *MediaStream) SendClear(streamSID string) error {
	return s.sendWebsocketMessage(outboundFrame{
		Event:     "clear",
		StreamSID: streamSID,
	})
}

// Close ends the connection. Safe to call more than once and concurrently
// with Listen.
func (s *MediaStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close call leg connection: %w", err)
	}
	return nil
}

func (s *MediaStream) sendWebsocketMessage(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("call leg connection closed")
	}

	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to call leg websocket: %w", err)
	}
	return nil
}

type streamFrame struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid,omitempty"`
	Start     *struct {
		StreamSID        string         `json:"streamSid"`
		CallSID          string         `json:"callSid"`
		CustomParameters map[string]any `json:"customParameters"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
}

type outboundFrame struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid"`
	Media     *mediaPayload `json:"media,omitempty"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}
