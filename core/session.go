package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/bridge-core/core/events"
)

type State string

const (
	// StateAwaitingAgent: the call leg is accepted, the agent session is
	// being fetched and dialed.
	StateAwaitingAgent State = "awaiting-agent"
	// StateActive: both connections are up and frames are forwarded.
	StateActive State = "active"
	// StateClosing: one side ended; the other is being closed best-effort.
	StateClosing State = "closing"
	// StateClosed: both connections are down; the session is garbage-eligible.
	StateClosed State = "closed"
)

// SessionInfo is the exported, copyable view of one session's state.
type SessionInfo struct {
	ID               string
	State            State
	StreamSID        string
	CallSID          string
	CustomParameters map[string]any
	StartedAt        time.Time
}

// Session is one bridged call: one call-leg connection and at most one agent
// connection. All mutable fields are guarded by the session mutex; mutation
// happens only inside the coordinator's event handlers.
type Session struct {
	mu   sync.Mutex
	info SessionInfo

	callLeg CallLeg
	agent   AgentSession

	// agentCloseRequested distinguishes a close the coordinator asked for
	// from the remote agent ending the session.
	agentCloseRequested bool

	dropLogOnce  sync.Once
	teardownOnce sync.Once
}

func newSession(leg CallLeg) *Session {
	return &Session{
		info: SessionInfo{
			ID:        uuid.NewString(),
			State:     StateAwaitingAgent,
			StartedAt: time.Now(),
		},
		callLeg: leg,
	}
}

// Snapshot returns a point-in-time deep copy of the session's state.
func (s *Session) Snapshot() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snapshot SessionInfo
	_ = copier.CopyWithOption(&snapshot, s.info, copier.Option{DeepCopy: true})
	return snapshot
}

func (s *Session) bindStart(started events.CallStarted) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.info.StreamSID = started.StreamSID
	s.info.CallSID = started.CallSID
	s.info.CustomParameters = started.CustomParameters
}

// boundStreamSID returns the stream identifier, or "" while unbound or once
// the session is no longer forwarding.
func (s *Session) boundStreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info.State == StateClosing || s.info.State == StateClosed {
		return ""
	}
	return s.info.StreamSID
}

// attachAgent binds the agent connection and reports whether the session is
// still accepting one. At most one agent connection per session.
func (s *Session) attachAgent(agent AgentSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info.State != StateAwaitingAgent || s.agent != nil {
		return false
	}
	s.agent = agent
	s.info.State = StateActive
	return true
}

func (s *Session) agentRef() AgentSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent
}

// detachAgent clears the agent handle and reports whether the remote side
// ended the session (as opposed to a coordinator-requested close).
func (s *Session) detachAgent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.agent = nil
	return !s.agentCloseRequested
}

// takeAgentForClose hands out the agent connection for a coordinator-driven
// close, at most once.
func (s *Session) takeAgentForClose() AgentSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.agent == nil || s.agentCloseRequested {
		return nil
	}
	s.agentCloseRequested = true
	return s.agent
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.State = state
}

// effectiveOverrides resolves the prompt and first utterance for the agent
// session: custom parameters bound by the call start win over the configured
// defaults. The agent may be dialed before start arrives; in that case the
// defaults apply.
func (s *Session) effectiveOverrides(defaultPrompt, defaultFirstMessage string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt := defaultPrompt
	firstMessage := defaultFirstMessage
	if value, ok := s.info.CustomParameters["prompt"]; ok {
		prompt = parameterString(value)
	}
	if value, ok := s.info.CustomParameters["first_message"]; ok {
		firstMessage = parameterString(value)
	}
	return prompt, firstMessage
}

// dynamicVariables merges the configured per-process variables with the call
// identifiers bound so far. The agent may be dialed before start arrives; in
// that case only the configured variables are sent.
func (s *Session) dynamicVariables(configured map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	variables := make(map[string]any, len(configured)+2)
	for key, value := range configured {
		variables[key] = value
	}
	if s.info.CallSID != "" {
		variables["call_sid"] = s.info.CallSID
	}
	if s.info.StreamSID != "" {
		variables["stream_sid"] = s.info.StreamSID
	}
	return variables
}

func (s *Session) logDroppedAudioOnce() {
	s.dropLogOnce.Do(func() {
		logger.Warn("dropping agent audio before stream is bound", "session_id", s.info.ID)
	})
}

func parameterString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
