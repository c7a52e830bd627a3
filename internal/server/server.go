// Package server wires the HTTP surface around the bridge coordinator: the
// call-initiation endpoint, the call-setup document, the media-stream
// websocket endpoint, session introspection, and static assets.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	bridge "github.com/koscakluka/bridge-core/core"
	"github.com/koscakluka/bridge-core/core/telephony/twilio"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// CallPlacer places outbound calls through the telephony provider.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to, answerURL string) (string, error)
}

type Server struct {
	coordinator *bridge.Coordinator
	calls       CallPlacer

	publicURL string
	staticDir string

	upgrader websocket.Upgrader
}

func New(coordinator *bridge.Coordinator, calls CallPlacer, publicURL, staticDir string) *Server {
	return &Server{
		coordinator: coordinator,
		calls:       calls,
		publicURL:   strings.TrimSuffix(publicURL, "/"),
		staticDir:   staticDir,
		upgrader: websocket.Upgrader{
			// The telephony provider connects from its own infrastructure.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the instrumented HTTP handler for the whole surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /outbound-call", s.handleOutboundCall)
	mux.HandleFunc("/outbound-call-twiml", s.handleCallSetup)
	mux.HandleFunc("GET /outbound-media-stream", s.handleMediaStream)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	return otelhttp.NewHandler(mux, "bridge")
}

type outboundCallRequest struct {
	Number       string `json:"number"`
	Prompt       string `json:"prompt"`
	FirstMessage string `json:"first_message"`
}

func (s *Server) handleOutboundCall(w http.ResponseWriter, r *http.Request) {
	var req outboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}
	if req.Number == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "phone number is required",
		})
		return
	}

	answerURL, err := url.Parse(s.publicURL + "/outbound-call-twiml")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "invalid public url",
		})
		return
	}
	queryParams := answerURL.Query()
	queryParams.Set("prompt", req.Prompt)
	queryParams.Set("first_message", req.FirstMessage)
	answerURL.RawQuery = queryParams.Encode()

	callSID, err := s.calls.PlaceCall(r.Context(), req.Number, answerURL.String())
	if err != nil {
		logger.Error("failed to place outbound call", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to initiate call",
		})
		return
	}

	logger.Info("outbound call placed", "call_sid", callSID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Call initiated",
		"callSid": callSID,
	})
}

// handleCallSetup returns the document that instructs the telephony provider
// to open a bidirectional media stream back to this process, carrying the
// prompt and first utterance as stream parameters.
func (s *Server) handleCallSetup(w http.ResponseWriter, r *http.Request) {
	streamURL := websocketURL(s.publicURL) + "/outbound-media-stream"
	document, err := twilio.StreamTwiML(streamURL, map[string]string{
		"prompt":        r.URL.Query().Get("prompt"),
		"first_message": r.URL.Query().Get("first_message"),
	})
	if err != nil {
		http.Error(w, "failed to render call setup document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(document))
}

func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("media stream upgrade failed", "error", err)
		return
	}

	// Bridge blocks until both sides of the session are down.
	_ = s.coordinator.Bridge(r.Context(), twilio.NewMediaStream(conn))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.coordinator.Sessions(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func websocketURL(publicURL string) string {
	wsURL := strings.Replace(publicURL, "https://", "wss://", 1)
	return strings.Replace(wsURL, "http://", "ws://", 1)
}
