package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/bridge-core/core/events"
	"github.com/koscakluka/bridge-core/core/telephony"
	"github.com/koscakluka/bridge-core/core/voiceagents"
)

func TestAgentAudioDroppedUntilStreamBound(t *testing.T) {
	leg := &callLegStub{}
	c := NewCoordinator()
	sess := newSession(leg)

	c.forwardAgentAudio(sess, events.NewAgentAudioChunk("QUJD"))
	c.forwardAgentAudio(sess, events.NewAgentAudioChunk("REVG"))

	if got := leg.sentMedia(); len(got) != 0 {
		t.Fatalf("expected no media frames before stream is bound, got %v", got)
	}

	sess.bindStart(events.NewCallStarted("S1", "C1", nil))
	c.forwardAgentAudio(sess, events.NewAgentAudioChunk("QUJD"))

	got := leg.sentMedia()
	if len(got) != 1 || got[0].streamSID != "S1" || got[0].payload != "QUJD" {
		t.Fatalf("expected one media frame for S1 with payload QUJD, got %v", got)
	}
}

func TestInterruptionEmitsClearOnlyWhenBound(t *testing.T) {
	leg := &callLegStub{}
	c := NewCoordinator()
	sess := newSession(leg)

	c.forwardAgentInterruption(sess)
	if got := leg.sentClears(); len(got) != 0 {
		t.Fatalf("expected no clear frames before stream is bound, got %v", got)
	}

	sess.bindStart(events.NewCallStarted("S1", "C1", nil))
	c.forwardAgentInterruption(sess)

	got := leg.sentClears()
	if len(got) != 1 || got[0] != "S1" {
		t.Fatalf("expected exactly one clear frame for S1, got %v", got)
	}
}

func TestCallMediaDroppedWithoutAgent(t *testing.T) {
	leg := &callLegStub{}
	c := NewCoordinator()
	sess := newSession(leg)

	c.handleCallMedia(sess, events.NewCallMedia("eHl6"))

	agent := &agentSessionStub{}
	if !sess.attachAgent(agent) {
		t.Fatalf("expected agent to attach to a fresh session")
	}
	c.handleCallMedia(sess, events.NewCallMedia("eHl6"))

	if got := agent.sentAudio(); len(got) != 1 || got[0] != "eHl6" {
		t.Fatalf("expected exactly one forwarded audio chunk after attach, got %v", got)
	}
}

func TestCallStopClosesAgentButNotCallLeg(t *testing.T) {
	leg := &callLegStub{}
	agent := &agentSessionStub{}
	c := NewCoordinator()
	sess := newSession(leg)
	sess.attachAgent(agent)

	c.handleCallStopped(sess)

	if got := agent.closes(); got != 1 {
		t.Fatalf("expected agent closed once on stop, got %d closes", got)
	}
	if got := leg.closes(); got != 0 {
		t.Fatalf("expected call leg left open on stop, got %d closes", got)
	}
}

func TestTeardownClosesAgentAtMostOnce(t *testing.T) {
	leg := &callLegStub{}
	agent := &agentSessionStub{}
	c := NewCoordinator()
	sess := newSession(leg)
	sess.attachAgent(agent)

	c.handleCallStopped(sess)
	c.teardown(sess)
	c.teardown(sess)

	if got := agent.closes(); got != 1 {
		t.Fatalf("expected agent closed exactly once, got %d closes", got)
	}
	if got := leg.closes(); got != 1 {
		t.Fatalf("expected call leg closed exactly once, got %d closes", got)
	}
	if state := sess.Snapshot().State; state != StateClosed {
		t.Fatalf("expected session closed, got %q", state)
	}
}

func TestRemoteAgentCloseTearsDownCallLeg(t *testing.T) {
	leg := &callLegStub{}
	agent := &agentSessionStub{}
	c := NewCoordinator()
	sess := newSession(leg)
	sess.attachAgent(agent)

	c.handleAgentClosed(sess, nil)

	if got := leg.closes(); got != 1 {
		t.Fatalf("expected call leg closed after remote agent close, got %d closes", got)
	}
	if got := agent.closes(); got != 0 {
		t.Fatalf("expected no close issued to an already-ended agent, got %d closes", got)
	}
}

func TestCoordinatorRequestedAgentCloseDoesNotTearDown(t *testing.T) {
	leg := &callLegStub{}
	agent := &agentSessionStub{}
	c := NewCoordinator()
	sess := newSession(leg)
	sess.attachAgent(agent)

	c.handleCallStopped(sess)
	// The adapter reports the close we asked for; the call leg stays open
	// until its own transport disconnects.
	c.handleAgentClosed(sess, nil)

	if got := leg.closes(); got != 0 {
		t.Fatalf("expected call leg left open, got %d closes", got)
	}
}

func TestBridgeEndToEnd(t *testing.T) {
	agent := &agentSessionStub{}
	var agentOpts voiceagents.SessionOptions
	dialed := make(chan struct{})

	c := NewCoordinator(
		WithSignedURLFetcher(fetcherStub{url: "wss://agent.example/session"}),
		WithAgentDialer(func(_ context.Context, signedURL string, opts ...voiceagents.SessionOption) (AgentSession, error) {
			if signedURL != "wss://agent.example/session" {
				t.Errorf("expected dial against fetched signed url, got %q", signedURL)
			}
			for _, opt := range opts {
				opt(&agentOpts)
			}
			close(dialed)
			return agent, nil
		}),
	)

	leg := &callLegStub{}
	leg.script = func(ctx context.Context, opts telephony.StreamOptions) {
		opts.StartCallback(events.NewCallStarted("S1", "C1", map[string]any{}))
		<-dialed
		waitForState(t, c, StateActive)

		agentOpts.AudioCallback(events.NewAgentAudioChunk("QUJD"))
		opts.MediaCallback(events.NewCallMedia("eHl6"))
		opts.StopCallback(events.NewCallStopped())
	}

	if err := c.Bridge(context.Background(), leg); err != nil {
		t.Fatalf("expected bridge to finish cleanly, got %v", err)
	}

	media := leg.sentMedia()
	if len(media) != 1 || media[0].streamSID != "S1" || media[0].payload != "QUJD" {
		t.Fatalf("expected exactly one media frame {S1 QUJD}, got %v", media)
	}
	if got := agent.sentAudio(); len(got) != 1 || got[0] != "eHl6" {
		t.Fatalf("expected exactly one user audio chunk eHl6, got %v", got)
	}
	if got := agent.closes(); got != 1 {
		t.Fatalf("expected agent closed exactly once, got %d closes", got)
	}
	if got := len(c.Sessions()); got != 0 {
		t.Fatalf("expected no sessions after bridge finished, got %d", got)
	}
}

func TestBridgeMediaBeforeStartForwardsNothing(t *testing.T) {
	agent := &agentSessionStub{}
	release := make(chan struct{})

	c := NewCoordinator(
		WithSignedURLFetcher(blockingFetcherStub{release: release, url: "wss://agent.example/session"}),
		WithAgentDialer(func(_ context.Context, _ string, opts ...voiceagents.SessionOption) (AgentSession, error) {
			return agent, nil
		}),
	)

	leg := &callLegStub{}
	leg.script = func(ctx context.Context, opts telephony.StreamOptions) {
		opts.MediaCallback(events.NewCallMedia("eHl6"))
		close(release)
	}

	if err := c.Bridge(context.Background(), leg); err != nil {
		t.Fatalf("expected bridge to finish cleanly, got %v", err)
	}

	if got := agent.sentAudio(); len(got) != 0 {
		t.Fatalf("expected no audio forwarded before the agent session exists, got %v", got)
	}
}

func TestCustomParametersOverrideInitiationDefaults(t *testing.T) {
	started := make(chan struct{})
	var agentOpts voiceagents.SessionOptions

	c := NewCoordinator(
		WithSignedURLFetcher(blockingFetcherStub{release: started, url: "wss://agent.example/session"}),
		WithAgentDialer(func(_ context.Context, _ string, opts ...voiceagents.SessionOption) (AgentSession, error) {
			for _, opt := range opts {
				opt(&agentOpts)
			}
			return &agentSessionStub{}, nil
		}),
		WithDefaultOverrides("default prompt", "default first message"),
	)

	leg := &callLegStub{}
	leg.script = func(ctx context.Context, opts telephony.StreamOptions) {
		opts.StartCallback(events.NewCallStarted("S1", "C1", map[string]any{
			"prompt":        "custom prompt",
			"first_message": "custom first message",
		}))
		close(started)
		waitForState(t, c, StateActive)
	}

	if err := c.Bridge(context.Background(), leg); err != nil {
		t.Fatalf("expected bridge to finish cleanly, got %v", err)
	}

	if agentOpts.Prompt == nil || *agentOpts.Prompt != "custom prompt" {
		t.Fatalf("expected custom prompt override, got %v", agentOpts.Prompt)
	}
	if agentOpts.FirstMessage == nil || *agentOpts.FirstMessage != "custom first message" {
		t.Fatalf("expected custom first message override, got %v", agentOpts.FirstMessage)
	}
}

func TestDynamicVariablesCarryCallIdentifiers(t *testing.T) {
	started := make(chan struct{})
	var agentOpts voiceagents.SessionOptions

	c := NewCoordinator(
		WithSignedURLFetcher(blockingFetcherStub{release: started, url: "wss://agent.example/session"}),
		WithAgentDialer(func(_ context.Context, _ string, opts ...voiceagents.SessionOption) (AgentSession, error) {
			for _, opt := range opts {
				opt(&agentOpts)
			}
			return &agentSessionStub{}, nil
		}),
		WithDynamicVariables(map[string]any{"caller_number": "+15557654321"}),
	)

	leg := &callLegStub{}
	leg.script = func(ctx context.Context, opts telephony.StreamOptions) {
		opts.StartCallback(events.NewCallStarted("S1", "C1", nil))
		close(started)
		waitForState(t, c, StateActive)
	}

	if err := c.Bridge(context.Background(), leg); err != nil {
		t.Fatalf("expected bridge to finish cleanly, got %v", err)
	}

	if got := agentOpts.DynamicVariables["caller_number"]; got != "+15557654321" {
		t.Errorf("expected configured caller number in dynamic variables, got %v", got)
	}
	if got := agentOpts.DynamicVariables["call_sid"]; got != "C1" {
		t.Errorf("expected bound call sid in dynamic variables, got %v", got)
	}
	if got := agentOpts.DynamicVariables["stream_sid"]; got != "S1" {
		t.Errorf("expected bound stream sid in dynamic variables, got %v", got)
	}
}

func TestSignedURLFailureEndsCallWithoutAgent(t *testing.T) {
	dialerCalled := false
	c := NewCoordinator(
		WithSignedURLFetcher(fetcherStub{err: errFetchRejected}),
		WithAgentDialer(func(_ context.Context, _ string, _ ...voiceagents.SessionOption) (AgentSession, error) {
			dialerCalled = true
			return &agentSessionStub{}, nil
		}),
	)

	leg := &callLegStub{}
	leg.script = func(ctx context.Context, opts telephony.StreamOptions) {
		waitForClose(t, leg)
	}

	if err := c.Bridge(context.Background(), leg); err != nil {
		t.Fatalf("expected bridge to finish cleanly, got %v", err)
	}
	if dialerCalled {
		t.Fatalf("expected no agent dial after signed url failure")
	}
}

func TestSessionSnapshotsAreIndependentCopies(t *testing.T) {
	c := NewCoordinator()
	sess := newSession(&callLegStub{})
	c.register(sess)
	defer c.unregister(sess)

	params := map[string]any{"prompt": "original"}
	sess.bindStart(events.NewCallStarted("S1", "C1", params))

	snapshots := c.Sessions()
	if len(snapshots) != 1 {
		t.Fatalf("expected one session snapshot, got %d", len(snapshots))
	}

	params["prompt"] = "mutated"
	if got := snapshots[0].CustomParameters["prompt"]; got != "original" {
		t.Fatalf("expected snapshot isolated from later mutation, got %v", got)
	}
}

func waitForState(t *testing.T, c *Coordinator, state State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		for _, snapshot := range c.Sessions() {
			if snapshot.State == state {
				return
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for a session in state %q", state)
}

func waitForClose(t *testing.T, leg *callLegStub) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if leg.closes() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for the call leg to close")
}

type sentMediaFrame struct {
	streamSID string
	payload   string
}

type callLegStub struct {
	mu sync.Mutex

	script func(ctx context.Context, opts telephony.StreamOptions)

	media      []sentMediaFrame
	clears     []string
	closeCount int
}

func (s *callLegStub) Listen(ctx context.Context, opts ...telephony.StreamOption) error {
	options := telephony.StreamOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if s.script != nil {
		s.script(ctx, options)
	}
	return nil
}

func (s *callLegStub) SendMedia(streamSID, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = append(s.media, sentMediaFrame{streamSID: streamSID, payload: payload})
	return nil
}

func (s *callLegStub) SendClear(streamSID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears = append(s.clears, streamSID)
	return nil
}

func (s *callLegStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

func (s *callLegStub) sentMedia() []sentMediaFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	media := make([]sentMediaFrame, len(s.media))
	copy(media, s.media)
	return media
}

func (s *callLegStub) sentClears() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	clears := make([]string, len(s.clears))
	copy(clears, s.clears)
	return clears
}

func (s *callLegStub) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

type agentSessionStub struct {
	mu sync.Mutex

	audio      []string
	closeCount int
}

func (s *agentSessionStub) SendUserAudio(audio string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, audio)
	return nil
}

func (s *agentSessionStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

func (s *agentSessionStub) sentAudio() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio := make([]string, len(s.audio))
	copy(audio, s.audio)
	return audio
}

func (s *agentSessionStub) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

type fetcherStub struct {
	url string
	err error
}

func (f fetcherStub) FetchSignedURL(_ context.Context, _, _ string) (string, error) {
	return f.url, f.err
}

type blockingFetcherStub struct {
	release <-chan struct{}
	url     string
}

func (f blockingFetcherStub) FetchSignedURL(_ context.Context, _, _ string) (string, error) {
	<-f.release
	return f.url, nil
}

var errFetchRejected = errors.New("signed url issuance rejected")
