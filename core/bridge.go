// Package bridge relays audio and control events between one telephony call
// leg and one conversational voice-agent session per call. The coordinator is
// the only component that knows both protocols; the adapters translate their
// wire formats into the normalized event contract and back.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/bridge-core/core/events"
	"github.com/koscakluka/bridge-core/core/telephony"
	"github.com/koscakluka/bridge-core/core/voiceagents"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Coordinator bridges accepted call-leg connections to agent sessions, one
// independent session per connection. Sessions share nothing but the
// coordinator's configuration.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*Session

	signedURLs SignedURLFetcher
	dialAgent  AgentDialer

	agentID string
	apiKey  string

	defaultPrompt       string
	defaultFirstMessage string
	dynamicVariables    map[string]any
}

func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		sessions: map[string]*Session{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bridge runs one session against an accepted call leg. It blocks until both
// connections are down; run it from the connection's handler. The agent
// session is opened concurrently and may come up before or after the call
// start binds its identifiers.
func (c *Coordinator) Bridge(ctx context.Context, leg CallLeg) error {
	sess := newSession(leg)
	c.register(sess)
	defer c.unregister(sess)

	ctx, span := tracer.Start(ctx, "bridge call", trace.WithAttributes(
		attribute.String("session.id", sess.info.ID),
	))
	defer span.End()

	logger.Info("call leg connected", "session_id", sess.info.ID)

	go c.openAgentSession(ctx, sess)

	err := leg.Listen(ctx,
		telephony.WithStartCallback(func(started events.CallStarted) { c.handleCallStarted(sess, started) }),
		telephony.WithMediaCallback(func(media events.CallMedia) { c.handleCallMedia(sess, media) }),
		telephony.WithStopCallback(func(events.CallStopped) { c.handleCallStopped(sess) }),
	)
	if err != nil {
		recordedErr := fmt.Errorf("call leg ended abnormally: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
	}

	c.teardown(sess)
	logger.Info("call ended", "session_id", sess.info.ID)
	return err
}

// Sessions returns point-in-time snapshots of every live session.
func (c *Coordinator) Sessions() []SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshots := make([]SessionInfo, 0, len(c.sessions))
	for _, sess := range c.sessions {
		snapshots = append(snapshots, sess.Snapshot())
	}
	return snapshots
}

func (c *Coordinator) openAgentSession(ctx context.Context, sess *Session) {
	ctx, span := tracer.Start(ctx, "open agent session")
	defer span.End()

	if c.signedURLs == nil || c.dialAgent == nil {
		recordedErr := fmt.Errorf("no agent transport configured")
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		c.teardown(sess)
		return
	}

	signedURL, err := c.signedURLs.FetchSignedURL(ctx, c.agentID, c.apiKey)
	if err != nil {
		// Fatal to the session: the call leg is never bridged to an agent.
		recordedErr := fmt.Errorf("failed to fetch signed session url: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.Error("failed to fetch signed session url", "session_id", sess.info.ID, "error", err)
		c.teardown(sess)
		return
	}

	prompt, firstMessage := sess.effectiveOverrides(c.defaultPrompt, c.defaultFirstMessage)
	agent, err := c.dialAgent(ctx, signedURL,
		voiceagents.WithPrompt(prompt),
		voiceagents.WithFirstMessage(firstMessage),
		voiceagents.WithDynamicVariables(sess.dynamicVariables(c.dynamicVariables)),
		voiceagents.WithAudioCallback(func(chunk events.AgentAudioChunk) { c.forwardAgentAudio(sess, chunk) }),
		voiceagents.WithInterruptionCallback(func(events.AgentInterruption) { c.forwardAgentInterruption(sess) }),
		voiceagents.WithAgentTranscriptCallback(func(transcript events.AgentTranscript) {
			logger.Info("agent transcript", "session_id", sess.info.ID, "text", transcript.Text)
		}),
		voiceagents.WithUserTranscriptCallback(func(transcript events.UserTranscript) {
			logger.Info("user transcript", "session_id", sess.info.ID, "text", transcript.Text)
		}),
		voiceagents.WithMetadataCallback(func(events.InitiationMetadata) {
			logger.Debug("agent session initiated", "session_id", sess.info.ID)
		}),
		voiceagents.WithClosedCallback(func(err error) { c.handleAgentClosed(sess, err) }),
	)
	if err != nil {
		recordedErr := fmt.Errorf("failed to open agent session: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.Error("failed to open agent session", "session_id", sess.info.ID, "error", err)
		c.teardown(sess)
		return
	}

	if !sess.attachAgent(agent) {
		// The call ended while the agent was being dialed.
		_ = agent.Close()
		return
	}
	logger.Info("agent session attached", "session_id", sess.info.ID)
}

func (c *Coordinator) handleCallStarted(sess *Session, started events.CallStarted) {
	sess.bindStart(started)
	logger.Info("call stream started",
		"session_id", sess.info.ID,
		"stream_sid", started.StreamSID,
		"call_sid", started.CallSID,
	)
}

func (c *Coordinator) handleCallMedia(sess *Session, media events.CallMedia) {
	agent := sess.agentRef()
	if agent == nil {
		// Caller audio before or after the agent session; dropped, not an error.
		return
	}
	if err := agent.SendUserAudio(media.Payload); err != nil {
		logger.Warn("failed to forward caller audio", "session_id", sess.info.ID, "error", err)
	}
}

func (c *Coordinator) handleCallStopped(sess *Session) {
	// End of call audio closes the agent side; the call-leg connection itself
	// is closed by the underlying disconnect.
	sess.setState(StateClosing)
	if agent := sess.takeAgentForClose(); agent != nil {
		if err := agent.Close(); err != nil {
			logger.Warn("failed to close agent session", "session_id", sess.info.ID, "error", err)
		}
	}
}

func (c *Coordinator) handleAgentClosed(sess *Session, err error) {
	if err != nil {
		logger.Warn("agent session ended abnormally", "session_id", sess.info.ID, "error", err)
	}
	if sess.detachAgent() {
		// The remote agent ended the session; close the call leg too.
		c.teardown(sess)
	}
}

func (c *Coordinator) forwardAgentAudio(sess *Session, chunk events.AgentAudioChunk) {
	streamSID := sess.boundStreamSID()
	if streamSID == "" {
		// Drop, never buffer: audio that arrives before the stream is bound
		// has no destination.
		sess.logDroppedAudioOnce()
		return
	}
	if err := sess.callLeg.SendMedia(streamSID, chunk.Audio); err != nil {
		logger.Warn("failed to forward agent audio", "session_id", sess.info.ID, "error", err)
	}
}

func (c *Coordinator) forwardAgentInterruption(sess *Session) {
	streamSID := sess.boundStreamSID()
	if streamSID == "" {
		return
	}
	if err := sess.callLeg.SendClear(streamSID); err != nil {
		logger.Warn("failed to clear call leg buffer", "session_id", sess.info.ID, "error", err)
	}
}

// teardown closes whichever side is still open, exactly once per session.
func (c *Coordinator) teardown(sess *Session) {
	sess.teardownOnce.Do(func() {
		sess.setState(StateClosing)

		if agent := sess.takeAgentForClose(); agent != nil {
			if err := agent.Close(); err != nil {
				logger.Warn("failed to close agent session", "session_id", sess.info.ID, "error", err)
			}
		}
		if err := sess.callLeg.Close(); err != nil {
			logger.Warn("failed to close call leg", "session_id", sess.info.ID, "error", err)
		}

		sess.setState(StateClosed)
	})
}

func (c *Coordinator) register(sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sess.info.ID] = sess
}

func (c *Coordinator) unregister(sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sess.info.ID)
}
